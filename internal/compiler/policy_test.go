package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/testutil"
)

func compilePolicies(t *testing.T, src string) (*policy.Registry, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompilePolicies(v.LookupPath(cue.ParsePath("softDelete")), testutil.NewFixedClock())
}

func TestCompilePolicies(t *testing.T) {
	reg, err := compilePolicies(t, `
		softDelete: {
			default: {allowToOneUpdates: true}
			models: {
				Comment: true
				Post:    {field: "deletedAt", encoder: "timestamp"}
				User:    {allowCompoundUniqueWhere: true}
				Tag:     false
			}
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Comment", "Post", "User"}, reg.Models())

	comment, ok := reg.Lookup("Comment")
	require.True(t, ok)
	assert.Equal(t, "deleted", comment.Field)
	assert.Equal(t, ir.IRBool(true), comment.Deleted())
	assert.True(t, comment.AllowToOneUpdates, "inherited from the default")

	post, _ := reg.Lookup("Post")
	assert.Equal(t, "deletedAt", post.Field)
	assert.Equal(t, ir.IRNull{}, post.NotDeleted())
	assert.Equal(t, ir.IRString("2024-01-01T00:00:00Z"), post.Deleted())

	user, _ := reg.Lookup("User")
	assert.True(t, user.AllowCompoundUniqueWhere)

	_, ok = reg.Lookup("Tag")
	assert.False(t, ok)
}

func TestCompilePolicies_Empty(t *testing.T) {
	reg, err := compilePolicies(t, `softDelete: {}`)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestCompilePolicies_Errors(t *testing.T) {
	t.Run("unknown encoder", func(t *testing.T) {
		_, err := compilePolicies(t, `softDelete: models: Post: {encoder: "epoch"}`)
		var compileErr *CompileError
		require.ErrorAs(t, err, &compileErr)
		assert.Equal(t, "softDelete.models.Post.encoder", compileErr.Field)
		assert.Contains(t, compileErr.Message, `unknown encoder "epoch"`)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := compilePolicies(t, `softDelete: default: {column: "x"}`)
		var compileErr *CompileError
		require.ErrorAs(t, err, &compileErr)
		assert.Equal(t, "softDelete.default.column", compileErr.Field)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := compilePolicies(t, `softDelete: models: Post: "yes"`)
		var compileErr *CompileError
		require.ErrorAs(t, err, &compileErr)
		assert.Equal(t, "softDelete.models.Post", compileErr.Field)
	})

	t.Run("empty field", func(t *testing.T) {
		_, err := compilePolicies(t, `softDelete: models: Post: {field: ""}`)
		require.Error(t, err)
		assert.True(t, policy.IsConfigError(err, policy.ErrCodeMissingField))
	})
}
