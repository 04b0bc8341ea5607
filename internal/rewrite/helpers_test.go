package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/testutil"
)

// tree parses a JSON literal into an argument tree.
func tree(t *testing.T, s string) ir.IRValue {
	t.Helper()
	v, err := ir.ParseJSON([]byte(s))
	require.NoError(t, err)
	return v
}

// canonical renders v for readable comparisons.
func canonical(t *testing.T, v ir.IRValue) string {
	t.Helper()
	b, err := ir.MarshalCanonical(v)
	require.NoError(t, err)
	return string(b)
}

// requireArgs compares an argument tree with a JSON literal.
func requireArgs(t *testing.T, want string, got ir.IRValue) {
	t.Helper()
	require.Equal(t, canonical(t, tree(t, want)), canonical(t, got))
}

func enabled(models ...string) map[string]policy.Setting {
	out := make(map[string]policy.Setting, len(models))
	for _, m := range models {
		out[m] = policy.Enabled()
	}
	return out
}

func newEngine(t *testing.T, def policy.Policy, models map[string]policy.Setting) *Engine {
	t.Helper()
	reg, err := policy.NewRegistry(def, models)
	require.NoError(t, err)
	return NewEngine(reg, testutil.BlogFacts(t))
}

func blogEngine(t *testing.T, models ...string) *Engine {
	t.Helper()
	return newEngine(t, policy.Default(), enabled(models...))
}

func rewrite(t *testing.T, e *Engine, model string, verb Verb, args string) Outcome {
	t.Helper()
	var a ir.IRValue
	if args != "" {
		a = tree(t, args)
	}
	out, err := e.Rewrite(Descriptor{Model: model, Verb: verb, Args: a})
	require.NoError(t, err)
	return out
}
