// Package schema holds the precomputed, read-only facts the rewrite engine
// needs about each model: its fields, single-field unique keys, compound
// unique groups and relation cardinality.
//
// Facts are built once at startup by New and never mutated afterwards, so
// they are safe for concurrent use without synchronization.
package schema
