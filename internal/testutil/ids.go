package testutil

// FixedIDGenerator generates the same operation id every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same FixedIDGenerator produces byte-identical
// operation logs.
//
// Unlike dispatch.FixedGenerator which returns ids in sequence, this generator
// always returns the same id.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed operation id generator.
//
// If id is empty, Generate() returns "test-op-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-op-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements dispatch.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
