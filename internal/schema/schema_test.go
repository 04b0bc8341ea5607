package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blogModels() []Model {
	return []Model{
		{
			Name: "User",
			Fields: []Field{
				{Name: "id", Type: FieldInt, ID: true},
				{Name: "email", Type: FieldString, Unique: true},
				{Name: "name", Type: FieldString},
			},
			Unique: [][]string{{"name", "email"}},
			Relations: map[string]Relation{
				"posts": {Model: "Post", Cardinality: ToMany, From: "id", To: "authorId"},
			},
		},
		{
			Name: "Post",
			Fields: []Field{
				{Name: "id", Type: FieldInt, ID: true},
				{Name: "authorId", Type: FieldInt},
			},
			Relations: map[string]Relation{
				"author": {Model: "User", Cardinality: ToOne, From: "authorId", To: "id"},
			},
		},
	}
}

func TestNew_DerivesUniqueKeys(t *testing.T) {
	facts, err := New(blogModels()...)
	require.NoError(t, err)

	user, ok := facts.Model("User")
	require.True(t, ok)

	assert.Equal(t, []string{"id", "email"}, user.UniqueFields())
	assert.Equal(t, []string{"name_email"}, user.UniqueGroups())
	assert.True(t, user.IsUniqueField("email"))
	assert.False(t, user.IsUniqueField("name"))
	assert.True(t, user.IsUniqueGroup("name_email"))
	assert.Equal(t, "id", user.PrimaryKey())

	fields, ok := user.GroupFields("name_email")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "email"}, fields)
}

func TestNew_FillsRelationNames(t *testing.T) {
	facts, err := New(blogModels()...)
	require.NoError(t, err)

	rel, ok := facts.Relation("Post", "author")
	require.True(t, ok)
	assert.Equal(t, "author", rel.Name)
	assert.False(t, rel.IsList())

	rel, ok = facts.Relation("User", "posts")
	require.True(t, ok)
	assert.True(t, rel.IsList())
	assert.Equal(t, "toMany", rel.Cardinality.String())

	_, ok = facts.Relation("User", "email")
	assert.False(t, ok, "scalar fields are not relations")
	_, ok = facts.Relation("Tag", "posts")
	assert.False(t, ok)
}

func TestNew_PreservesDeclarationOrder(t *testing.T) {
	facts, err := New(blogModels()...)
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Post"}, facts.Models())
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]Model) []Model
		wantErr string
	}{
		{
			name:    "duplicate model",
			mutate:  func(ms []Model) []Model { return append(ms, Model{Name: "User"}) },
			wantErr: "declared twice",
		},
		{
			name: "unknown relation target",
			mutate: func(ms []Model) []Model {
				ms[1].Relations["tags"] = Relation{Model: "Tag", Cardinality: ToMany, From: "id", To: "postId"}
				return ms
			},
			wantErr: "unknown model \"Tag\"",
		},
		{
			name: "unknown join column",
			mutate: func(ms []Model) []Model {
				ms[1].Relations["editor"] = Relation{Model: "User", From: "editorId", To: "id"}
				return ms
			},
			wantErr: "unknown local field \"editorId\"",
		},
		{
			name: "unknown unique group field",
			mutate: func(ms []Model) []Model {
				ms[0].Unique = append(ms[0].Unique, []string{"handle"})
				return ms
			},
			wantErr: "unknown field \"handle\"",
		},
		{
			name:    "missing name",
			mutate:  func(ms []Model) []Model { return append(ms, Model{}) },
			wantErr: "name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mutate(blogModels())...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "name_email", GroupName("name", "email"))
	assert.Equal(t, "id", GroupName("id"))
}
