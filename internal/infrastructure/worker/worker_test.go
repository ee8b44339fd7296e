package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEscalator struct {
	calls atomic.Int32
	err   error
}

func (m *mockEscalator) EscalateOverdue(ctx context.Context) (int, error) {
	m.calls.Add(1)
	return 1, m.err
}

type mockWorker struct {
	name     string
	startErr error
	stopErr  error
	started  bool
	stopped  bool
	order    *[]string
}

func (m *mockWorker) Start(ctx context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

func (m *mockWorker) Stop() error {
	m.stopped = true
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	return m.stopErr
}

func (m *mockWorker) Name() string { return m.name }

func TestEscalationWorker_SweepsOnStartAndTick(t *testing.T) {
	esc := &mockEscalator{}
	w := NewEscalationWorker(esc, 10*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start")

	assert.Eventually(t, func() bool { return esc.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	calls := esc.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, esc.calls.Load(), "no sweep after stop")

	require.NoError(t, w.Stop(), "stop is idempotent")
}

func TestEscalationWorker_KeepsRunningAfterError(t *testing.T) {
	esc := &mockEscalator{err: errors.New("database is locked")}
	w := NewEscalationWorker(esc, 10*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return esc.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())
}

func TestEscalationWorker_DefaultInterval(t *testing.T) {
	w := NewEscalationWorker(&mockEscalator{}, 0, zap.NewNop())
	assert.Equal(t, time.Minute, w.interval)
	assert.Equal(t, "EscalationWorker", w.Name())
}

func TestWorkerManager(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	ok := &mockWorker{name: "ok"}
	broken := &mockWorker{name: "broken", startErr: errors.New("boom")}
	m.Register(ok)
	m.Register(broken)
	assert.Equal(t, 2, m.GetWorkerCount())

	require.NoError(t, m.StopAll(), "stopping before start is a no-op")

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.True(t, ok.started)
	assert.False(t, broken.started)
	assert.Equal(t, []string{"ok"}, m.Running())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.True(t, ok.stopped)
	assert.False(t, broken.stopped, "a worker that never started is not stopped")
	assert.Empty(t, m.Running())
	require.NoError(t, m.StopAll())
}

func TestWorkerManager_StopsInReverseOrder(t *testing.T) {
	var order []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&mockWorker{name: "first", order: &order})
	m.Register(&mockWorker{name: "second", order: &order, stopErr: errors.New("stuck")})
	m.Register(&mockWorker{name: "third", order: &order})

	require.NoError(t, m.StartAll(context.Background()))
	err := m.StopAll()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "second: stuck")
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.False(t, m.IsRunning())
}
