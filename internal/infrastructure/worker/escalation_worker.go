package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Escalator escalates every case whose SLA has run out
type Escalator interface {
	EscalateOverdue(ctx context.Context) (int, error)
}

// EscalationWorker periodically hands overdue cases to the next SLA level
type EscalationWorker struct {
	escalator Escalator
	logger    *zap.Logger
	interval  time.Duration
	timeout   time.Duration

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEscalationWorker creates a new escalation worker. A non-positive
// interval falls back to one minute.
func NewEscalationWorker(escalator Escalator, interval time.Duration, logger *zap.Logger) *EscalationWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &EscalationWorker{
		escalator: escalator,
		logger:    logger,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Name returns the worker name for identification
func (w *EscalationWorker) Name() string {
	return "EscalationWorker"
}

// Start runs a sweep immediately and then on every tick until ctx ends or
// Stop is called
func (w *EscalationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("escalation worker is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("EscalationWorker started", zap.Duration("interval", w.interval))
	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *EscalationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("EscalationWorker stopped")
	return nil
}

func (w *EscalationWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *EscalationWorker) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	n, err := w.escalator.EscalateOverdue(ctx)
	if err != nil {
		w.logger.Error("Escalation sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("Escalation sweep finished", zap.Int("escalated", n))
	}
}
