package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/compiler"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/testutil"
)

func TestLoadConfig(t *testing.T) {
	loaded, err := LoadConfig(blogConfigDir, testutil.NewFixedClock())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.FileCount)
	assert.Equal(t, []string{"Comment", "Post", "User"}, loaded.Config.Policies.Models())

	_, ok := loaded.Config.Facts.Model("Profile")
	assert.True(t, ok, "undeclared soft delete still leaves the model in the facts")
}

func TestLoadConfigNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blog.cue")
	require.NoError(t, os.WriteFile(file, []byte("package x\n"), 0644))

	_, err := LoadConfig(file, policy.SystemClock{})
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
	assert.Contains(t, loadErr.Message, "not a directory")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.cue", "b.txt", "nested/c.cue"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue"), filepath.Join(dir, "nested", "c.cue")}, files)
}

func TestConvertCompileError(t *testing.T) {
	err := convertCompileError(&compiler.CompileError{Field: "relations.author.model", Message: "unknown model Writer"})
	assert.Equal(t, ErrCodeRelation, err.Code)
	assert.Equal(t, "E105: unknown model Writer", err.Error())

	err = convertCompileError(errors.New("boom"))
	assert.Equal(t, ErrCodeGeneric, err.Code)
}
