/*
Package worker provides the preemptible execution units multiplexed by the round-robin
scheduler.

# Overview

A Worker is a goroutine that executes an opaque task body only while it holds the
scheduler's running slot. The scheduler controls it exclusively through directives:

  - DirectiveResume: start a new slice and call the body until preempted
  - DirectiveSuspend: cancel the slice context and block until the next resume
  - DirectiveCancel: cancel the slice context and exit permanently

Directives never interrupt the body mid-instruction. The body observes preemption through
its context, which is canceled when a suspend or cancel directive arrives, and is expected
to return promptly. Bodies that return nil are simply called again while the slice lasts.

# Exiting early

A body returning types.ErrTaskComplete, or a failure that the configured error handler
refuses to absorb, makes the worker exit on its own. Later directives fail with
types.ErrWorkerExited, which the scheduler treats as the worker being terminated.

# Pools

A Pool creates a fixed, indexed set of workers from a BodyFactory and starts their
goroutines in an errgroup.Group. The scheduler owns one pool per run; worker i always
has id i.

# Usage

	w, err := worker.NewWorker(0, worker.SpinBody())
	if err != nil {
		log.Fatal(err)
	}
	go w.Run(ctx)

	_ = w.Deliver(types.DirectiveResume)
	time.Sleep(10 * time.Millisecond)
	_ = w.Deliver(types.DirectiveSuspend)
	_ = w.Deliver(types.DirectiveCancel)
	<-w.Done()
*/
package worker
