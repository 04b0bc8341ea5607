// Package policy holds the per-model soft-delete configuration.
//
// A Policy names the marker field, supplies the encoder that turns the
// intent "deleted" / "not deleted" into a stored marker value, and carries
// the two safety toggles consulted by the rewrite engine.
//
// Policies are built once by NewRegistry from a default policy merged with
// per-model settings. A Registry is immutable after construction and safe
// for concurrent use.
package policy
