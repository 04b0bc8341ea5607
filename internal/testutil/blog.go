package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/schema"
)

// BlogModels returns the schema shared by package tests:
//
//	User    1-n Post, 1-n Comment, 1-1 Profile, compound unique (name, email)
//	Profile n-1 User
//	Post    n-1 User (author), 1-n Comment
//	Comment n-1 User (author), n-1 Post, n-1 Comment (parent), 1-n Comment (replies)
//
// Every model carries a boolean "deleted" column; User and Post also carry a
// nullable "deletedAt" timestamp for timestamp-policy tests.
func BlogModels() []schema.Model {
	return []schema.Model{
		{
			Name: "User",
			Fields: []schema.Field{
				{Name: "id", Type: schema.FieldInt, ID: true},
				{Name: "email", Type: schema.FieldString, Unique: true},
				{Name: "name", Type: schema.FieldString},
				{Name: "deleted", Type: schema.FieldBoolean},
				{Name: "deletedAt", Type: schema.FieldTimestamp, Optional: true},
			},
			Unique: [][]string{{"name", "email"}},
			Relations: map[string]schema.Relation{
				"posts":    {Model: "Post", Cardinality: schema.ToMany, From: "id", To: "authorId"},
				"comments": {Model: "Comment", Cardinality: schema.ToMany, From: "id", To: "authorId"},
				"profile":  {Model: "Profile", Cardinality: schema.ToOne, From: "id", To: "userId"},
			},
		},
		{
			Name: "Profile",
			Fields: []schema.Field{
				{Name: "id", Type: schema.FieldInt, ID: true},
				{Name: "bio", Type: schema.FieldString, Optional: true},
				{Name: "userId", Type: schema.FieldInt, Unique: true},
				{Name: "deleted", Type: schema.FieldBoolean},
			},
			Relations: map[string]schema.Relation{
				"user": {Model: "User", Cardinality: schema.ToOne, From: "userId", To: "id"},
			},
		},
		{
			Name: "Post",
			Fields: []schema.Field{
				{Name: "id", Type: schema.FieldInt, ID: true},
				{Name: "title", Type: schema.FieldString},
				{Name: "content", Type: schema.FieldString, Optional: true},
				{Name: "authorId", Type: schema.FieldInt},
				{Name: "deleted", Type: schema.FieldBoolean},
				{Name: "deletedAt", Type: schema.FieldTimestamp, Optional: true},
			},
			Relations: map[string]schema.Relation{
				"author":   {Model: "User", Cardinality: schema.ToOne, From: "authorId", To: "id"},
				"comments": {Model: "Comment", Cardinality: schema.ToMany, From: "id", To: "postId"},
			},
		},
		{
			Name: "Comment",
			Fields: []schema.Field{
				{Name: "id", Type: schema.FieldInt, ID: true},
				{Name: "content", Type: schema.FieldString},
				{Name: "authorId", Type: schema.FieldInt},
				{Name: "postId", Type: schema.FieldInt},
				{Name: "parentId", Type: schema.FieldInt, Optional: true},
				{Name: "deleted", Type: schema.FieldBoolean},
			},
			Relations: map[string]schema.Relation{
				"author":  {Model: "User", Cardinality: schema.ToOne, From: "authorId", To: "id"},
				"post":    {Model: "Post", Cardinality: schema.ToOne, From: "postId", To: "id"},
				"parent":  {Model: "Comment", Cardinality: schema.ToOne, From: "parentId", To: "id"},
				"replies": {Model: "Comment", Cardinality: schema.ToMany, From: "id", To: "parentId"},
			},
		},
	}
}

// BlogFacts builds schema facts for BlogModels, failing the test on error.
func BlogFacts(t testing.TB) *schema.Facts {
	t.Helper()
	facts, err := schema.New(BlogModels()...)
	require.NoError(t, err)
	return facts
}
