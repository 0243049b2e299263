// Package retry retries failed task body calls with a configurable backoff.
//
// A retried body keeps its running slot: the backoff pause is part of the slice, and a
// preemption during the pause ends the call with the context error, which the worker
// treats like any other preempted call. Only when the policy gives up does the failure
// reach the worker's error policy.
//
// Basic usage:
//
//	policy := retry.NewExponentialBackoff(3, 10*time.Millisecond)
//	body := retry.NewBody(fetch, policy).TaskBody()
package retry
