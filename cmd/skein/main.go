// Command skein runs the stage-execution engine: a daemon that
// schedules stage dependency graphs across isolated git worktrees, and
// the CLI verbs that drive it.
package main

func main() {
	Execute()
}
