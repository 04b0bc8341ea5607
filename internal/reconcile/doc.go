// Package reconcile repairs read results the rewrite engine could not
// filter declaratively.
//
// To-one relations cannot carry a where clause, so a soft-deleted target
// may come back inside an include or select. Reconcile walks the result in
// lock-step with the operation's include/select shape and replaces every
// such target with null. To-many lists were already filtered by the engine
// and keep their membership; the walk only descends into their elements.
// Marker fields the engine added to a select purely for this check are
// stripped again.
package reconcile
