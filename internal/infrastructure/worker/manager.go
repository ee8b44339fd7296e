package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background loop owned by the manager
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// WorkerManager starts and stops the registered workers as a group
type WorkerManager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	workers []Worker
	running []Worker // started successfully, in start order
	cancel  context.CancelFunc
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker. Workers registered after StartAll wait for the
// next start.
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Debug("Worker registered", zap.String("worker", w.Name()))
}

// StartAll starts every registered worker under a context derived from ctx.
// A worker that fails to start is logged and left out of the running set.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("workers already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = m.running[:0]

	for _, w := range m.workers {
		if err := w.Start(runCtx); err != nil {
			m.logger.Error("Failed to start worker", zap.String("worker", w.Name()), zap.Error(err))
			continue
		}
		m.running = append(m.running, w)
	}
	m.logger.Info("Workers started",
		zap.Int("running", len(m.running)),
		zap.Int("registered", len(m.workers)))
	return nil
}

// StopAll cancels the run context and stops the running workers in reverse
// start order. Stopping an idle manager is a no-op.
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	cancel, running := m.cancel, m.running
	m.cancel, m.running = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var errs []error
	for i := len(running) - 1; i >= 0; i-- {
		w := running[i]
		if err := w.Stop(); err != nil {
			m.logger.Error("Failed to stop worker", zap.String("worker", w.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	m.logger.Info("Workers stopped", zap.Int("count", len(running)))
	return errors.Join(errs...)
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// Running returns the names of the workers currently running
func (m *WorkerManager) Running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.running))
	for i, w := range m.running {
		names[i] = w.Name()
	}
	return names
}

// IsRunning reports whether StartAll has been called without a StopAll
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancel != nil
}
