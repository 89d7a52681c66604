package net

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// raceResult is one task's outcome as delivered to the collecting
// goroutine in RaceBatch.GetOkValidated.
type raceResult[T any] struct {
	value T
	err   error
}

// RaceBatch races an unbounded number of tasks to completion while
// limiting how many run concurrently via a weighted semaphore. The first
// task to produce a value that passes validation wins; the rest keep
// running to completion in the background (we don't cancel them — only
// stop waiting on them) but never block the caller.
type RaceBatch[T any] struct {
	sem     *semaphore.Weighted
	results chan raceResult[T]
	wg      sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// NewRaceBatch constructs a RaceBatch that runs at most maxConcurrentJobs
// tasks at once.
func NewRaceBatch[T any](maxConcurrentJobs int64) *RaceBatch[T] {
	return &RaceBatch[T]{
		sem:     semaphore.NewWeighted(maxConcurrentJobs),
		results: make(chan raceResult[T]),
		done:    make(chan struct{}),
	}
}

// Add schedules fn to run once a semaphore slot is available. fn's result
// is delivered to a pending GetOkValidated call, or discarded if the batch
// has already finished.
func (b *RaceBatch[T]) Add(ctx context.Context, fn func(ctx context.Context) (T, error)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		if err := b.sem.Acquire(ctx, 1); err != nil {
			b.deliver(raceResult[T]{err: err})
			return
		}
		value, err := fn(ctx)
		b.sem.Release(1)
		b.deliver(raceResult[T]{value: value, err: err})
	}()
}

func (b *RaceBatch[T]) deliver(r raceResult[T]) {
	select {
	case b.results <- r:
	case <-b.done:
	}
}

// GetOkValidated blocks until some added task returns a nil error whose
// value satisfies validate, or every task has finished without one, or ctx
// is done first. The zero value and false are returned in the latter two
// cases.
func (b *RaceBatch[T]) GetOkValidated(ctx context.Context, validate func(T) bool) (T, bool) {
	allDone := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(allDone)
	}()

	defer b.closeOnce.Do(func() { close(b.done) })

	var zero T
	for {
		select {
		case r := <-b.results:
			if r.err == nil && validate(r.value) {
				return r.value, true
			}
		case <-allDone:
			select {
			case r := <-b.results:
				if r.err == nil && validate(r.value) {
					return r.value, true
				}
			default:
			}
			return zero, false
		case <-ctx.Done():
			return zero, false
		}
	}
}
