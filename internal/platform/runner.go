package platform

import (
	"context"
	"fmt"
)

// RunHandle tracks a run started with BeginRun. The result is readable once
// Done is closed.
type RunHandle struct {
	runID  string
	cancel context.CancelFunc
	done   chan struct{}

	result EvolutionResult
	err    error
}

// BeginRun starts RunEvolution in the background and returns immediately.
// Validation errors surface through Wait, the same way run errors do.
func (a *Academy) BeginRun(ctx context.Context, cfg EvolutionConfig) *RunHandle {
	if cfg.RunID == "" {
		cfg.RunID = fmt.Sprintf("run:%s:%d", cfg.DatasetLabel, cfg.Seed)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &RunHandle{
		runID:  cfg.RunID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer cancel()
		h.result, h.err = a.RunEvolution(runCtx, cfg)
	}()
	return h
}

func (h *RunHandle) RunID() string {
	return h.runID
}

// Done is closed when the run finishes, fails, or is stopped.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Stop cancels the run. Wait reports context.Canceled for a stopped run.
func (h *RunHandle) Stop() {
	h.cancel()
}

// Wait blocks until the run finishes or ctx expires.
func (h *RunHandle) Wait(ctx context.Context) (EvolutionResult, error) {
	select {
	case <-ctx.Done():
		return EvolutionResult{}, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}
