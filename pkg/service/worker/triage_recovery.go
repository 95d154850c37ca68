package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
)

// Recoverer resumes classification of issues stuck between commits
type Recoverer interface {
	RecoverStalled(ctx context.Context, staleAfter time.Duration) (int, error)
}

// TriageRecoveryWorker periodically resumes issues left in the created or
// classifying stage, e.g. after the process died mid-classification.
//
// Multiple instances may run at once; the per-issue merge lock keeps a
// stalled issue from being resumed twice.
type TriageRecoveryWorker struct {
	recoverer  Recoverer
	interval   time.Duration
	staleAfter time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewTriageRecoveryWorker creates a new worker. Issues whose last update is
// older than staleAfter are considered stalled.
func NewTriageRecoveryWorker(recoverer Recoverer, interval, staleAfter time.Duration) *TriageRecoveryWorker {
	return &TriageRecoveryWorker{
		recoverer:  recoverer,
		interval:   interval,
		staleAfter: staleAfter,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background sweep loop without blocking server startup
func (w *TriageRecoveryWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return goerr.New("recovery interval must be positive", goerr.V("interval", w.interval.String()))
	}

	logging.Default().Info("triage recovery worker starting",
		"interval", w.interval.String(),
		"stale_after", w.staleAfter.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *TriageRecoveryWorker) Stop() {
	logging.Default().Info("triage recovery worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("triage recovery worker stopped")
}

func (w *TriageRecoveryWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("triage recovery worker context cancelled")
			return
		}
	}
}

// sweep runs one recovery pass. Failures are logged and retried next interval.
func (w *TriageRecoveryWorker) sweep(ctx context.Context) {
	startTime := time.Now()

	n, err := w.recoverer.RecoverStalled(ctx, w.staleAfter)
	if err != nil {
		logging.Default().Error("triage recovery failed (will retry next interval)",
			"error", err.Error(), "recovered", n)
		return
	}

	if n > 0 {
		logging.Default().Info("stalled issues recovered",
			"count", n,
			"duration", time.Since(startTime).String())
	}
}
