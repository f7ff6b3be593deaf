// Package depsys implements the discrete dependency system: the data
// structures, flag-based state machines, and propagation protocol that
// compute a partial order over tasks consistent with their declared data
// accesses, and release each task for execution exactly when its
// predecessors have produced the values it depends on.
//
// The package does not own worker threads and does not interpret access
// contents — only addresses, lengths, and access kinds. See executor for
// the collaborator that actually runs task bodies.
package depsys
