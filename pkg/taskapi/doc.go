// Package taskapi is the §6 external-interface surface: register_task_kind,
// create_task/submit_task (fused here into Spawn), the
// register_*_access[_weak] family (AccessSpec), release_*_region (Release),
// the blocking/mutex/timed-wait primitives, events, spawn_function and the
// init/shutdown/check_version bootstrap calls.
//
// It is the only package a task body is expected to import: pkg/depsys and
// pkg/executor are the runtime's internals, not something a task author
// calls directly.
package taskapi
