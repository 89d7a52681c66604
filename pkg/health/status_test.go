package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReporterLivenessAndReadiness(t *testing.T) {
	r := NewReporter()

	require.NoError(t, r.LivenessChecker()(context.Background()))
	require.Error(t, r.ReadinessChecker()(context.Background()))

	r.Set(SyncStatusReport{Status: StatusSynced, CurrentHeadEpoch: 100, NetworkHeadEpoch: 100})
	require.NoError(t, r.LivenessChecker()(context.Background()))
	require.NoError(t, r.ReadinessChecker()(context.Background()))

	r.Set(SyncStatusReport{Status: StatusError})
	require.Error(t, r.LivenessChecker()(context.Background()))
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "Syncing", StatusSyncing.String())
	require.Equal(t, "Synced", StatusSynced.String())
	require.Equal(t, "Error", StatusError.String())
}
