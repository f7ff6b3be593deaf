// Command taskrun drives the dependency-tracking task runtime from the
// command line: it loads a config file, builds a Runtime, and runs one of
// the built-in seed workloads against it.
package main

import "github.com/perf-analysis/cmd/taskrun/cmd"

func main() {
	cmd.Execute()
}
