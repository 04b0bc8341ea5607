package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tombstone/internal/compiler"
	"github.com/roach88/tombstone/internal/policy"
)

// LoadResult contains a compiled configuration directory.
type LoadResult struct {
	Config    *compiler.Config
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during config loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadConfig loads and compiles the CUE configuration in dir.
// Timestamp markers read the clock at the moment they are written.
func LoadConfig(dir string, clock policy.Clock) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	cfg, err := compiler.CompileConfig(value, clock)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{Config: cfg, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	var cfgErr *policy.ConfigError
	if errors.As(err, &cfgErr) {
		return &LoadError{Code: ErrCodeSoftDelete, Message: cfgErr.Error()}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeReadFailed  = "E007" // Operation or scenario file unreadable

	// Model errors
	ErrCodeModel     = "E101" // Missing or inconsistent model declarations
	ErrCodeFields    = "E102" // Missing or malformed fields
	ErrCodeFieldType = "E103" // Unknown field type
	ErrCodeUnique    = "E104" // Malformed compound unique group
	ErrCodeRelation  = "E105" // Malformed relation

	// Policy errors
	ErrCodeSoftDelete = "E110" // Malformed softDelete block
	ErrCodeEncoder    = "E111" // Unknown or missing encoder

	// Operation errors
	ErrCodeOperation = "E120" // Malformed operation file
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "model":
		return ErrCodeModel
	case field == "fields":
		return ErrCodeFields
	case field == "type":
		return ErrCodeFieldType
	case field == "unique":
		return ErrCodeUnique
	case strings.HasPrefix(field, "relations"):
		return ErrCodeRelation
	case strings.HasPrefix(field, "softDelete") && strings.HasSuffix(field, ".encoder"):
		return ErrCodeEncoder
	case strings.HasPrefix(field, "softDelete"):
		return ErrCodeSoftDelete
	default:
		return ErrCodeGeneric
	}
}
