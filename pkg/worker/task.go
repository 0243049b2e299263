// Package worker provides the preemptible worker goroutines driven by the scheduler
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
)

// spinChunk is the number of iterations a SpinBody performs between checkpoints
const spinChunk = 4096

// SpinBody returns a CPU-bound body. Each call performs a short chunk of arithmetic and
// returns, so the worker reaches a checkpoint many times per quantum.
func SpinBody() types.TaskBody {
	var acc uint64
	return func(ctx context.Context) error {
		for i := 0; i < spinChunk; i++ {
			acc = acc*6364136223846793005 + 1442695040888963407
		}
		return nil
	}
}

// SleepBody returns a body that simulates work by waiting d per call on the clock carried
// by the context.
func SleepBody(d time.Duration) types.TaskBody {
	return func(ctx context.Context) error {
		timer := types.ClockFromContext(ctx).NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// BlockBody returns a body that does nothing until it is preempted
func BlockBody() types.TaskBody {
	return func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
}

// LimitBody wraps body so that the worker finishes after n successful calls
func LimitBody(n int64, body types.TaskBody) types.TaskBody {
	var calls int64
	return func(ctx context.Context) error {
		if atomic.LoadInt64(&calls) >= n {
			return types.ErrTaskComplete
		}
		if err := body(ctx); err != nil {
			return err
		}
		atomic.AddInt64(&calls, 1)
		return nil
	}
}

// BodyFactory builds the task body of worker id
type BodyFactory func(id int) types.TaskBody

// BodyFactoryByName returns the factory for a named body kind: "spin", "sleep" or "block"
func BodyFactoryByName(name string, sleep time.Duration) (BodyFactory, error) {
	switch name {
	case "", "spin":
		return func(int) types.TaskBody { return SpinBody() }, nil
	case "sleep":
		if sleep <= 0 {
			return nil, fmt.Errorf("%w: sleep body needs a positive duration", types.ErrInvalidConfig)
		}
		return func(int) types.TaskBody { return SleepBody(sleep) }, nil
	case "block":
		return func(int) types.TaskBody { return BlockBody() }, nil
	default:
		return nil, fmt.Errorf("%w: unknown body %q", types.ErrInvalidConfig, name)
	}
}
