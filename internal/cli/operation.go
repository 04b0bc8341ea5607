package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
)

// operationFile is the on-disk form of one operation.
// JSON files parse as YAML.
type operationFile struct {
	Model string `yaml:"model"`
	Verb  string `yaml:"verb"`
	Args  any    `yaml:"args"`
}

// ReadOperation reads an operation file into a root descriptor.
func ReadOperation(path string) (rewrite.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rewrite.Descriptor{}, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("failed to read operation file: %v", err)}
	}
	return ParseOperation(data)
}

// ParseOperation decodes a YAML or JSON operation.
// Args must be an object when present; absent args stay nil.
func ParseOperation(data []byte) (rewrite.Descriptor, error) {
	var op operationFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&op); err != nil {
		return rewrite.Descriptor{}, operationError("failed to parse operation: %v", err)
	}

	if op.Model == "" {
		return rewrite.Descriptor{}, operationError("model is required")
	}
	verb, ok := rewrite.ParseVerb(op.Verb)
	if !ok {
		return rewrite.Descriptor{}, operationError("unknown verb %q", op.Verb)
	}

	d := rewrite.Descriptor{Model: op.Model, Verb: verb}
	if op.Args == nil {
		return d, nil
	}
	args, err := ir.FromGo(op.Args)
	if err != nil {
		return rewrite.Descriptor{}, operationError("args: %v", err)
	}
	if _, isObj := args.(ir.IRObject); !isObj {
		return rewrite.Descriptor{}, operationError("args must be an object")
	}
	d.Args = args
	return d, nil
}

func operationError(format string, args ...any) *LoadError {
	return &LoadError{Code: ErrCodeOperation, Message: fmt.Sprintf(format, args...)}
}
