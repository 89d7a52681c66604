package net

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRaceBatchOk(t *testing.T) {
	b := NewRaceBatch[int](3)
	ctx := context.Background()
	b.Add(ctx, func(context.Context) (int, error) { return 1, nil })
	b.Add(ctx, func(context.Context) (int, error) { return 0, fmt.Errorf("kaboom") })

	v, ok := b.GetOkValidated(ctx, func(int) bool { return true })
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestRaceBatchOkFaster(t *testing.T) {
	b := NewRaceBatch[int](3)
	ctx := context.Background()
	b.Add(ctx, func(context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	b.Add(ctx, func(context.Context) (int, error) { return 2, nil })
	b.Add(ctx, func(context.Context) (int, error) { return 0, fmt.Errorf("kaboom") })

	v, ok := b.GetOkValidated(ctx, func(int) bool { return true })
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestRaceBatchNone(t *testing.T) {
	b := NewRaceBatch[int](3)
	ctx := context.Background()
	b.Add(ctx, func(context.Context) (int, error) { return 0, fmt.Errorf("kaboom") })
	b.Add(ctx, func(context.Context) (int, error) { return 0, fmt.Errorf("banana") })

	_, ok := b.GetOkValidated(ctx, func(int) bool { return true })
	require.False(t, ok)
}

func TestRaceBatchSemaphoreBound(t *testing.T) {
	const maxJobs = 30
	b := NewRaceBatch[int](maxJobs)
	ctx := context.Background()
	var counter int32
	var exceeded int32

	for i := 0; i < 2000; i++ {
		b.Add(ctx, func(context.Context) (int, error) {
			prev := atomic.AddInt32(&counter, 1)
			if prev > maxJobs {
				atomic.StoreInt32(&exceeded, 1)
			}
			atomic.AddInt32(&counter, -1)
			return 0, fmt.Errorf("banana")
		})
	}

	_, ok := b.GetOkValidated(ctx, func(int) bool { return true })
	require.False(t, ok)
	require.Zero(t, atomic.LoadInt32(&exceeded))
}
