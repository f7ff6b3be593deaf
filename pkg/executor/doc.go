// Package executor is the fixed-capacity worker pool described in §1 as
// the dependency system's sole collaborator: it owns the goroutines and
// decides when a runnable task's body actually executes, while
// pkg/depsys owns none of that and only ever hands back "these tasks are
// now runnable" lists. The pool does not know what a task body does or
// what accesses it declared — it just runs it, then asks depsys to
// finalize it and resubmits whatever became runnable as a result.
package executor
