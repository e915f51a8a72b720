// Package orchestrator owns the execution graph, the running-session
// pool, and the main scheduler loop described in spec section 4.5: it
// refreshes readiness, watches liveness of running sessions, fills the
// pool up to max_parallel, collects completion events, runs
// auto-merge, and emits status snapshots every tick.
//
// The scheduler is single-threaded by design (spec section 5
// "Scheduling model"): one goroutine owns the graph, the running-
// session map, and the decision to spawn or kill. RPC-driven mutations
// (from internal/daemon) are applied by calling Orchestrator's
// exported methods, which serialize themselves onto the same
// goroutine via a command channel rather than locking — matching spec
// section 5's "RPC effects are serialised through the scheduler's
// command queue."
package orchestrator
