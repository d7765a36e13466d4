package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lucid-vigil/warden/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockWorker is a mock implementation of the Worker interface.
type MockWorker struct {
	mock.Mock
}

func (m *MockWorker) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockWorker) Run(ctx context.Context) {
	m.Called(ctx)
}

func TestScheduler_RegisterWorker(t *testing.T) {
	cfg := &config.Config{}
	sched := NewScheduler(cfg)

	worker := new(MockWorker)
	worker.On("Name").Return("test_worker")

	sched.RegisterWorker(worker)

	assert.Len(t, sched.workers, 1)
	assert.Equal(t, worker, sched.workers[0])
	worker.AssertExpectations(t)
}

func TestScheduler_Start(t *testing.T) {
	cfg := &config.Config{
		Workers: []config.WorkerConfig{
			{Name: "worker_enabled", Enabled: true, Interval: "100ms"},
			{Name: "worker_disabled", Enabled: false, Interval: "100ms"},
			{Name: "worker_invalid_interval", Enabled: true, Interval: "invalid"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	sched := NewScheduler(cfg)

	enabledWorker := new(MockWorker)
	enabledWorker.On("Name").Return("worker_enabled")

	var mu sync.Mutex
	runs := 0
	ran := make(chan struct{}, 16)
	enabledWorker.On("Run", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		runs++
		mu.Unlock()
		select {
		case ran <- struct{}{}:
		default:
		}
	}).Return()
	sched.RegisterWorker(enabledWorker)

	disabledWorker := new(MockWorker)
	disabledWorker.On("Name").Return("worker_disabled")
	sched.RegisterWorker(disabledWorker)

	invalidIntervalWorker := new(MockWorker)
	invalidIntervalWorker.On("Name").Return("worker_invalid_interval")
	sched.RegisterWorker(invalidIntervalWorker)

	sched.Start(ctx)

	// The enabled worker runs immediately, then on every tick.
	select {
	case <-ran:
	case <-ctx.Done():
		t.Fatal("enabled worker never ran")
	}
	<-ctx.Done()

	mu.Lock()
	assert.GreaterOrEqual(t, runs, 1)
	mu.Unlock()
	disabledWorker.AssertNotCalled(t, "Run", mock.Anything)
	invalidIntervalWorker.AssertNotCalled(t, "Run", mock.Anything)
}
