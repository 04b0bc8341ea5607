// Package rewrite implements the soft-delete operation rewrite engine.
//
// Every pending operation is described by a Descriptor (model, verb,
// argument tree and, for nested operations, a Scope). A handler per verb
// turns a descriptor into an Outcome: the descriptor that should actually
// run, plus a SideChannel telling the result reconciler whether the marker
// field was injected into a to-one select.
//
// Engine.Rewrite applies the root handler and then walks the argument tree:
//
//   - where trees, through AND/OR/NOT and relation filters
//     (is, isNot, some, every, none, plain to-one objects)
//   - include and select trees, per relation key
//   - data payloads, rewriting nested delete, deleteMany, update,
//     updateMany and upsert literals in place
//
// Handlers are pure functions of (policy, model facts, descriptor). The
// engine holds only the immutable policy registry and schema facts, so one
// Engine may be shared by any number of goroutines.
package rewrite
