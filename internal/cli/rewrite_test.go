package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/ir"
)

func TestRewriteDelete(t *testing.T) {
	op := writeOp(t, "delete.yaml", `
model: User
verb: delete
args:
  where: { id: 1 }
`)

	out, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), blogConfigDir, "--op", op)
	require.NoError(t, err)
	assert.Equal(t, "User.update {\"data\":{\"deleted\":true},\"where\":{\"id\":1}}\n", out)
}

func TestRewriteInjectionJSON(t *testing.T) {
	op := writeOp(t, "fetch.json", `{
  "model": "Comment",
  "verb": "fetchMany",
  "args": {"include": {"author": {"select": {"name": true}}}}
}`)

	out, err := execute(t, NewRewriteCommand(&RootOptions{Format: "json"}), blogConfigDir, "--op", op)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   RewriteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Comment", resp.Data.Model)
	assert.Equal(t, "fetchMany", resp.Data.Verb)
	assert.True(t, resp.Data.Changed)
	assert.Equal(t, []string{"author"}, resp.Data.Injected)
	assert.JSONEq(t,
		`{"include":{"author":{"select":{"deleted":true,"name":true}}},"where":{"deleted":false}}`,
		string(resp.Data.Args))
}

func TestRewriteInjectionText(t *testing.T) {
	op := writeOp(t, "fetch.yaml", `
model: Comment
verb: fetchMany
args:
  include:
    author:
      select: { name: true }
`)

	out, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), blogConfigDir, "--op", op)
	require.NoError(t, err)
	assert.Contains(t, out, "Comment.fetchMany ")
	assert.Contains(t, out, "marker injected: author\n")
}

func TestRewriteUnconfiguredModel(t *testing.T) {
	op := writeOp(t, "profile.yaml", "model: Profile\nverb: fetchMany\nargs: { where: { bio: hi } }\n")

	out, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), blogConfigDir, "--op", op)
	require.NoError(t, err)
	assert.Contains(t, out, `Profile.fetchMany {"where":{"bio":"hi"}}`)
	assert.Contains(t, out, "(unchanged)")
}

func TestRewriteBlocked(t *testing.T) {
	op := writeOp(t, "update.yaml", `
model: Post
verb: update
args:
  where: { id: 1 }
  data:
    author:
      update: { name: Alicia }
`)

	out, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), blogConfigDir, "--op", op)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [TO_ONE_RELATION_UPDATE_BLOCKED]")
}

func TestRewriteOperationErrors(t *testing.T) {
	tests := []struct {
		name string
		op   string
		code string
	}{
		{"unknown verb", "model: User\nverb: findMany\n", ErrCodeOperation},
		{"missing model", "verb: fetchMany\n", ErrCodeOperation},
		{"unknown key", "model: User\nverb: fetchMany\nargz: {}\n", ErrCodeOperation},
		{"args not an object", "model: User\nverb: fetchMany\nargs: [1]\n", ErrCodeOperation},
		{"float arg", "model: User\nverb: fetchMany\nargs: { take: 1.5 }\n", ErrCodeOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := writeOp(t, "op.yaml", tt.op)
			_, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), blogConfigDir, "--op", op)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.code)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), blogConfigDir, "--op", "/nonexistent/op.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrCodeReadFailed)
	})

	t.Run("missing op flag", func(t *testing.T) {
		_, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), blogConfigDir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"op" not set`)
	})
}

func TestParseOperation(t *testing.T) {
	d, err := ParseOperation([]byte("model: User\nverb: count\n"))
	require.NoError(t, err)
	assert.Equal(t, "User", d.Model)
	assert.Equal(t, "count", string(d.Verb))
	assert.Nil(t, d.Args)
	assert.Nil(t, d.Scope)

	d, err = ParseOperation([]byte(`{"model":"User","verb":"fetchMany","args":{"where":{"deletedAt":null}}}`))
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"where": ir.IRObject{"deletedAt": ir.IRNull{}}}, d.Args)
}
