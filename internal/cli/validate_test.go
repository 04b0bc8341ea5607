package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/compiler"
)

const missingMarkerConfig = `package tags

model: Tag: fields: {
	id:   {type: "int", id: true}
	name: {type: "string"}
}

softDelete: models: Tag: true
`

func TestValidateValidConfig(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), blogConfigDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Config valid (3 soft-delete model(s))")
}

func TestValidateValidConfigJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), blogConfigDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"Comment", "Post", "User"}, resp.Data.Models)
}

func TestValidateVerboseListsModels(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json", Verbose: true})
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{blogConfigDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Soft delete enabled: Post (marker deletedAt)")
	// Verbose output goes to stderr, stdout stays valid JSON.
	assert.NotContains(t, out.String(), "Soft delete enabled")
	assert.True(t, json.Valid(out.Bytes()))
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{
			name: "no fields",
			src:  "package x\nmodel: M: {}\nsoftDelete: {}\n",
			code: ErrCodeFields,
		},
		{
			name: "unknown field type",
			src:  "package x\nmodel: M: fields: id: {type: \"float\", id: true}\nsoftDelete: {}\n",
			code: ErrCodeFieldType,
		},
		{
			name: "unknown encoder",
			src:  "package x\nmodel: M: fields: id: {type: \"int\", id: true}\nsoftDelete: default: encoder: \"nope\"\n",
			code: ErrCodeEncoder,
		},
		{
			name: "missing softDelete",
			src:  "package x\nmodel: M: fields: id: {type: \"int\", id: true}\n",
			code: ErrCodeSoftDelete,
		},
		{
			name: "syntax error",
			src:  "package x\nmodel: {",
			code: ErrCodeLoadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.src)
			_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.code)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestValidateCrossCheckFailure(t *testing.T) {
	dir := writeConfig(t, missingMarkerConfig)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrMissingMarker)
	assert.Contains(t, out, "softDelete.models.Tag.field")
}

func TestValidateCrossCheckFailureJSON(t *testing.T) {
	dir := writeConfig(t, missingMarkerConfig)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, compiler.ErrMissingMarker, resp.Data.Errors[0].Code)
	assert.Equal(t, compiler.ErrMissingMarker, resp.Error.Code)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"cue":                          ErrCodeBuildFailed,
		"model":                        ErrCodeModel,
		"fields":                       ErrCodeFields,
		"type":                         ErrCodeFieldType,
		"unique":                       ErrCodeUnique,
		"relations.author.model":       ErrCodeRelation,
		"softDelete":                   ErrCodeSoftDelete,
		"softDelete.models.Post":       ErrCodeSoftDelete,
		"softDelete.models.Post.field": ErrCodeSoftDelete,
		"softDelete.default.encoder":   ErrCodeEncoder,
		"somewhere":                    ErrCodeGeneric,
	}
	for field, code := range tests {
		assert.Equal(t, code, MapFieldToErrorCode(field), field)
	}
}
