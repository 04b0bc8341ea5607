package rewrite

import "github.com/roach88/tombstone/internal/ir"

// Scope describes how a nested operation hangs under its parent.
type Scope struct {
	ParentModel string
	ParentVerb  Verb

	// Relation is the relation field traversed from the parent.
	Relation string

	// RelationIsList is false for to-one relations, which cannot carry a
	// filter predicate of their own.
	RelationIsList bool

	// ListModifier is set when the nesting arose from a relation filter.
	ListModifier Modifier
}

// Descriptor is one pending operation.
type Descriptor struct {
	Model string
	Verb  Verb

	// Args is the argument tree. nil means no arguments were supplied.
	Args ir.IRValue

	// Scope is nil for root operations.
	Scope *Scope
}

// SideChannel carries rewrite decisions the result reconciler needs.
type SideChannel struct {
	// MarkerInjected is set when the marker field was added to a to-one
	// select so deleted targets can be detected in the result.
	MarkerInjected bool

	// Paths lists the dot-joined relation paths, from the root model,
	// where the marker was injected.
	Paths []string
}

// Injected reports whether the marker was injected at path.
func (s *SideChannel) Injected(path string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// Outcome is the result of rewriting one descriptor.
type Outcome struct {
	Descriptor Descriptor

	// SideChannel is nil when nothing needs reconciling.
	SideChannel *SideChannel
}

// VerbChanged reports whether the rewritten verb differs from before.
func (o Outcome) VerbChanged(before Descriptor) bool {
	return o.Descriptor.Verb != before.Verb
}

func passThrough(d Descriptor) (Outcome, error) {
	return Outcome{Descriptor: d}, nil
}

func with(d Descriptor, verb Verb, args ir.IRValue) Descriptor {
	d.Verb = verb
	d.Args = args
	return d
}
