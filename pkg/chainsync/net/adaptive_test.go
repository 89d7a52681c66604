package net

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdaptiveTimeoutFailureClampsAtMax(t *testing.T) {
	a := newAdaptiveTimeout(5*time.Second, 2*time.Second, 10*time.Second)
	a.AdaptOnFailure()
	require.Equal(t, 7*time.Second, a.Get())
	a.AdaptOnFailure()
	require.Equal(t, 10*time.Second, a.Get())
	a.AdaptOnFailure()
	require.Equal(t, 10*time.Second, a.Get())
}

func TestAdaptiveTimeoutSuccessRelaxesTowardMean(t *testing.T) {
	a := newAdaptiveTimeout(5*time.Second, 2*time.Second, 60*time.Second)
	a.AdaptOnFailure()
	a.AdaptOnFailure()
	require.Greater(t, a.Get(), 5*time.Second)

	changed := a.AdaptOnSuccess(1 * time.Second)
	require.True(t, changed)
	require.Equal(t, 5*time.Second, a.Get())
}

func TestRunningMean(t *testing.T) {
	m := &runningMean{}
	_, ok := m.Mean()
	require.False(t, ok)

	m.Update(100 * time.Millisecond)
	m.Update(300 * time.Millisecond)
	mean, ok := m.Mean()
	require.True(t, ok)
	require.Equal(t, 200*time.Millisecond, mean)
}
