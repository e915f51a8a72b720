package orchestrator

import "fmt"

// command is a serialized mutation request. Daemon RPC handlers run on
// their own goroutines and never touch graph/running directly; they
// call Orchestrator's exported methods, which wrap the actual work in
// a command and hand it to the single Run loop (spec section 5: "RPC
// mutations serialize through a command queue, not locks").
type command struct {
	run  func() error
	done chan error
}

// submit hands fn to the Run loop and blocks until it has executed,
// returning whatever error it produced.
func (o *Orchestrator) submit(fn func() error) error {
	cmd := command{run: fn, done: make(chan error, 1)}
	select {
	case o.cmdCh <- cmd:
	case <-o.stop:
		return fmt.Errorf("orchestrator stopped")
	}
	select {
	case err := <-cmd.done:
		return err
	case <-o.stop:
		return fmt.Errorf("orchestrator stopped")
	}
}

// drainCommands runs every command currently queued, in order, without
// blocking on new arrivals. Called once per tick, before liveness and
// dispatch, so a command's effects are visible to the rest of that
// same tick.
func (o *Orchestrator) drainCommands() {
	for {
		select {
		case cmd := <-o.cmdCh:
			cmd.done <- cmd.run()
		default:
			return
		}
	}
}
