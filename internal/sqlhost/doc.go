// Package sqlhost is a reference data-access client over SQLite.
//
// A Client executes model operations described by argument trees against
// tables generated from schema facts. It is the host the soft-delete shim
// is registered on: Do routes an operation through the interceptor
// installed for its model, while Invoke executes directly.
//
// Supported verbs:
//   - fetchOne, fetchOneOrThrow, fetchFirst, fetchFirstOrThrow, fetchMany
//   - count, aggregate (_count, _min, _max), groupBy (by, _count)
//   - create, createMany, update, updateMany, upsert, delete, deleteMany
//
// Update data may carry nested writes (create, update, updateMany, delete,
// deleteMany) on relations. Reads accept where, select, include, orderBy,
// take and skip, with nested shapes on relations.
//
// Determinism:
//
// Every query is ordered. A caller-supplied orderBy is always followed by
// the primary key, so equal sort values resolve the same way on every run.
// All values are parameterized, never interpolated into SQL.
package sqlhost
