// Package harness runs soft-delete conformance scenarios.
//
// A scenario compiles a CUE configuration directory, seeds a fresh
// in-memory store, and runs operations through the soft-delete extension
// exactly as application code would. Every step is traced three ways:
// the operation as issued, the operation as it reached the store, and the
// value or error code it completed with.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config: ../blog
//	seed:
//	  - model: User
//	    verb: create
//	    args: { data: { id: 1, email: a@x, name: Alice } }
//	steps:
//	  - model: User
//	    verb: delete
//	    args: { where: { id: 1 } }
//	    expect:
//	      result: { id: 1, deleted: true }
//	assertions:
//	  - type: trace_contains
//	    operation: User.update
//	    args: { data: { deleted: true } }
//	  - type: final_state
//	    model: User
//	    where: { id: 1 }
//	    expect: { deleted: true }
//
// Seed operations bypass the extension and are not traced. Step expect
// clauses take a result (subset match), a count, or an error code: a
// rewrite block code such as TO_ONE_RELATION_UPDATE_BLOCKED, or one of
// NOT_FOUND, QUERY_ERROR and ERROR.
//
// # Assertions
//
// Trace assertions look only at store executions, the operations the
// extension actually ran:
//   - trace_contains: an execution of operation whose args contain args
//   - trace_order: executions of operations appear in the given order
//   - trace_count: operation executed exactly count times
//
// final_state reads model without the extension, so soft deleted rows are
// visible. Omitting expect asserts that no row matches where.
//
// # Golden Files
//
// Traces are rendered as canonical JSON and compared with goldie; see
// RunWithGolden.
package harness
