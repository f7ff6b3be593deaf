// Package taskiter is the optional cyclic-graph reordering/locality
// optimizer described in spec.md §6 as a pure consumer of the dependency
// system's access API: it never touches an AccessState or a BottomMap
// directly, only submits tasks through pkg/taskapi the same way any other
// caller would.
//
// The original (src/dependencies/discrete/taskiter) supports several
// interchangeable locality-scheduling heuristics with identical
// correctness guarantees; per spec.md's own note that a reimplementation
// may keep just one, this package implements critical-path-first
// priority only, computed from each node's TaskiterNode-style
// "preferred out" successor pointer.
package taskiter
