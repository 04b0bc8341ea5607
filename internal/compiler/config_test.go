package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/testutil"
)

func TestLoadDir(t *testing.T) {
	cfg, err := LoadDir(filepath.Join("testdata", "blog"), testutil.NewFixedClock())
	require.NoError(t, err)

	// Matches the shared test fixture.
	assert.Equal(t, testutil.BlogFacts(t).Models(), cfg.Facts.Models())
	for _, name := range cfg.Facts.Models() {
		got, _ := cfg.Facts.Model(name)
		want, _ := testutil.BlogFacts(t).Model(name)
		assert.Equal(t, want.Fields, got.Fields, name)
		assert.Equal(t, want.Relations, got.Relations, name)
		assert.Equal(t, want.UniqueGroups(), got.UniqueGroups(), name)
	}

	assert.Equal(t, []string{"Comment", "Post", "User"}, cfg.Policies.Models())
	post, _ := cfg.Policies.Lookup("Post")
	assert.Equal(t, "deletedAt", post.Field)

	assert.Empty(t, Validate(cfg))
}

func TestLoadDir_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), nil)
		require.Error(t, err)
	})

	t.Run("syntax error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("package bad\nmodel: {"), 0644))
		_, err := LoadDir(dir, nil)
		require.Error(t, err)
	})

	t.Run("conflicting values", func(t *testing.T) {
		dir := t.TempDir()
		src := "package bad\nsoftDelete: default: field: \"a\"\nsoftDelete: default: field: \"b\"\nmodel: M: fields: id: {type: \"int\"}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0644))
		_, err := LoadDir(dir, nil)
		require.Error(t, err)
	})
}

func TestCompileConfig_RequiresSections(t *testing.T) {
	ctx := cuecontext.New()

	_, err := CompileConfig(ctx.CompileString(`softDelete: {}`), nil)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "model", compileErr.Field)

	_, err = CompileConfig(ctx.CompileString(`model: M: fields: id: {type: "int"}`), nil)
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "softDelete", compileErr.Field)
}
