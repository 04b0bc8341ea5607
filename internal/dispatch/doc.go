// Package dispatch composes the rewrite engine and the result reconciler
// around a host's execution callables.
//
// A Shim is the single entry point for every intercepted operation:
//
//  1. rewrite the descriptor (root handler plus nested walk)
//  2. execute it, through the supplied callable when the verb is unchanged
//     or through the host's direct invoker when it changed
//  3. reconcile the raw result against the caller's original shape
//
// Register installs a Shim on every model of a Host.
package dispatch
