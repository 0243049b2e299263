/*
Package scheduler implements a preemptive round-robin scheduler that multiplexes a fixed
set of workers onto a single running slot.

# Overview

A Scheduler owns three kinds of goroutines, all joined before Run returns:

  - one goroutine per worker (see package worker), blocked until resumed
  - an admission goroutine that moves workers into the run queue in index order, each
    holding one of QueueCapacity slots until it terminates
  - a coordinator goroutine that arms the quantum ticker once a worker is ready and
    runs one Engine.Step per tick

# Scheduling step

On every tick the Engine:

 1. Preempts the current worker: its run time grows by the time since it was resumed and
    it spends one quantum. A worker with quanta left is suspended and re-enters the run
    queue at the tail; a worker with none left is canceled, its run and wait times are
    folded into the totals and its queue slot is released.
 2. Quits if every worker has terminated.
 3. Otherwise waits until the run queue is non-empty, pops its head, adds the time since
    that worker was last suspended to its wait time and resumes it.

A worker whose goroutine has already exited cannot take directives; the engine retires it
as terminated and moves on without retrying.

# Guarantees

  - At most one worker is RUNNING at any instant.
  - A worker with quanta q is resumed exactly q times, each resume followed by exactly
    one suspend or cancel.
  - Run and wait times have microsecond resolution and never decrease.
  - The report (totals and per-worker averages) is produced exactly once.

Directives are delivered outside the engine lock; the lock is never held across a
delivery or a blocking wait.

# Usage

	s, err := scheduler.NewScheduler(&scheduler.Config{
		QueueCapacity: 3,
		Quanta:        []int{2, 1, 3},
		Quantum:       100 * time.Millisecond,
	})
	if err != nil {
		log.Fatal(err)
	}
	report, err := s.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(report.AverageWaitTime)
*/
package scheduler
