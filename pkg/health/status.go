// Package health exposes the chain-sync core's liveness/readiness signal
// as a pollable report and as checkers wired into an
// etherlabsio/healthcheck/v2 HTTP handler, mirroring how venus wires its
// own submodules' health into its API surface.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	healthcheck "github.com/etherlabsio/healthcheck/v2"
	"github.com/filecoin-project/go-state-types/abi"
)

// Status is the follower state machine's coarse-grained health verdict.
type Status int

const (
	StatusSyncing Status = iota
	StatusSynced
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSyncing:
		return "Syncing"
	case StatusSynced:
		return "Synced"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// SyncStatusReport is the snapshot external callers (the /livez, /readyz,
// /healthz HTTP endpoints) poll to learn how far behind the network head
// the locally-synced chain is.
type SyncStatusReport struct {
	Status           Status
	CurrentHeadEpoch abi.ChainEpoch
	NetworkHeadEpoch abi.ChainEpoch
	Err              error
}

// Reporter is a concurrency-safe holder for the latest SyncStatusReport,
// updated by the follower's event loop and read by HTTP handlers.
type Reporter struct {
	mu     sync.RWMutex
	report SyncStatusReport
}

// NewReporter returns a Reporter initialized to StatusSyncing at epoch 0.
func NewReporter() *Reporter {
	return &Reporter{report: SyncStatusReport{Status: StatusSyncing}}
}

// Set updates the held report. Called by the follower whenever its head or
// the network's best-known head changes.
func (r *Reporter) Set(report SyncStatusReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = report
}

// Report returns a copy of the latest report.
func (r *Reporter) Report() SyncStatusReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report
}

// LivenessChecker reports unhealthy only on StatusError: the process is
// alive as long as it is making forward progress or is caught up.
func (r *Reporter) LivenessChecker() healthcheck.CheckerFunc {
	return func(_ context.Context) error {
		rep := r.Report()
		if rep.Status == StatusError {
			if rep.Err != nil {
				return fmt.Errorf("chain sync in error state: %w", rep.Err)
			}
			return fmt.Errorf("chain sync in error state")
		}
		return nil
	}
}

// ReadinessChecker reports unhealthy until the follower reaches
// StatusSynced, so a load balancer can withhold traffic during bootstrap.
func (r *Reporter) ReadinessChecker() healthcheck.CheckerFunc {
	return func(_ context.Context) error {
		rep := r.Report()
		if rep.Status != StatusSynced {
			return fmt.Errorf("chain sync not yet caught up: at epoch %d of %d", rep.CurrentHeadEpoch, rep.NetworkHeadEpoch)
		}
		return nil
	}
}

// Handler builds the /healthz HTTP handler wiring both checkers in, the
// way an etherlabsio/healthcheck/v2 consumer is expected to.
func (r *Reporter) Handler() http.Handler {
	return healthcheck.Handler(
		healthcheck.WithChecker("chain-sync-liveness", r.LivenessChecker()),
		healthcheck.WithChecker("chain-sync-readiness", r.ReadinessChecker()),
	)
}
