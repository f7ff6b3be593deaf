package taskapi

import "github.com/perf-analysis/pkg/depsys"

// ChunkBody runs one taskloop chunk, covering [start, end).
type ChunkBody func(ctx *TaskContext, start, end int) error

// CreateTaskloop implements §6 create_task's `taskloop` flag: it splits
// [0, n) into numChunks contiguous chunks (the same ceiling-division
// chunk-size arithmetic the teacher's pkg/parallel.ChunkProcessor uses)
// and spawns one Taskloop-flagged child per non-empty chunk, each
// declaring accesses for its own [start, end) via accesses. numChunks <=
// 0 runs the whole range as a single chunk; CreateTaskloop has no notion
// of worker count, so sizing chunks per worker is left to the caller.
//
// Each chunk still goes through the ordinary Spawn/Register path: a
// taskloop is sugar over "several plain child tasks with contiguous
// iteration ranges", not a distinct execution mode the dependency system
// has to know about.
func (rt *Runtime) CreateTaskloop(parent *depsys.TaskNode, n, numChunks int, accesses func(start, end int) []AccessSpec, body ChunkBody) error {
	if n <= 0 {
		return nil
	}
	if numChunks <= 0 {
		numChunks = 1
	}
	if numChunks > n {
		numChunks = n
	}

	chunkSize := (n + numChunks - 1) / numChunks

	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		s, e := start, end
		_, err := rt.Spawn(parent, Taskloop, accesses(s, e), func(tc *TaskContext) error {
			return body(tc, s, e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
