package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/schema"
)

// Config is a compiled configuration directory.
type Config struct {
	Facts    *schema.Facts
	Policies *policy.Registry
}

// CompileConfig compiles the "model" and "softDelete" structs of v.
// Both are required; softDelete may be empty.
func CompileConfig(v cue.Value, clock policy.Clock) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelVal := v.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil, &CompileError{Field: "model", Message: "at least one model is required", Pos: v.Pos()}
	}
	facts, err := CompileSchema(modelVal)
	if err != nil {
		return nil, err
	}

	softDeleteVal := v.LookupPath(cue.ParsePath("softDelete"))
	if !softDeleteVal.Exists() {
		return nil, &CompileError{Field: "softDelete", Message: "softDelete is required", Pos: v.Pos()}
	}
	policies, err := CompilePolicies(softDeleteVal, clock)
	if err != nil {
		return nil, err
	}

	return &Config{Facts: facts, Policies: policies}, nil
}

// LoadDir loads the CUE package in dir and compiles it.
func LoadDir(dir string, clock policy.Clock) (*Config, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileConfig(value, clock)
}
