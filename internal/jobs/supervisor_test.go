package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

type countingMetrics struct {
	noopMetrics
	restarts atomic.Int32
}

func (m *countingMetrics) IncWorkerRestarts() { m.restarts.Add(1) }

const testInterval = 10 * time.Millisecond

func startSupervisor(t *testing.T, s *Supervisor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()
	return cancel, errCh
}

func TestNewSupervisorRequiresFactory(t *testing.T) {
	_, err := NewSupervisor(time.Second, nil, nil, nil)
	assert.Error(t, err)
}

func TestSupervisorRestartsDeadWorker(t *testing.T) {
	logger, hook := test.NewNullLogger()
	metrics := &countingMetrics{}

	var starts atomic.Int32
	factory := func() (Runner, error) {
		n := starts.Add(1)
		return runnerFunc(func(ctx context.Context) error {
			if n == 1 {
				return errors.New("worker died")
			}
			<-ctx.Done()
			return nil
		}), nil
	}

	s, err := NewSupervisor(testInterval, factory, metrics, logger)
	require.NoError(t, err)
	cancel, errCh := startSupervisor(t, s)

	require.Eventually(t, func() bool {
		return s.Restarts() == 1 && s.Alive()
	}, time.Second, testInterval)
	assert.EqualError(t, s.LastError(), "worker died")
	assert.Equal(t, int32(1), metrics.restarts.Load())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "processing worker was dead, restarting" {
			warned = true
		}
	}
	assert.True(t, warned)

	cancel()
	assert.NoError(t, <-errCh)
	assert.Equal(t, 1, s.Restarts(), "normal shutdown is not a restart")
}

func TestSupervisorRecoversRunnerPanic(t *testing.T) {
	logger, _ := test.NewNullLogger()

	var starts atomic.Int32
	factory := func() (Runner, error) {
		n := starts.Add(1)
		return runnerFunc(func(ctx context.Context) error {
			if n == 1 {
				panic("stack overflow")
			}
			<-ctx.Done()
			return nil
		}), nil
	}

	s, err := NewSupervisor(testInterval, factory, nil, logger)
	require.NoError(t, err)
	cancel, errCh := startSupervisor(t, s)
	defer cancel()

	require.Eventually(t, func() bool {
		return s.Restarts() == 1 && s.Alive()
	}, time.Second, testInterval)
	assert.ErrorIs(t, s.LastError(), ErrWorkerPanicked)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestSupervisorReturnsFactoryErrorOnStart(t *testing.T) {
	factory := func() (Runner, error) {
		return nil, errors.New("no worker")
	}
	s, err := NewSupervisor(testInterval, factory, nil, nil)
	require.NoError(t, err)

	err = s.Run(context.Background())
	assert.ErrorContains(t, err, "no worker")
	assert.False(t, s.Alive())
}

func TestSupervisorWaitsForWorkerOnShutdown(t *testing.T) {
	var stopped atomic.Bool
	factory := func() (Runner, error) {
		return runnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			stopped.Store(true)
			return nil
		}), nil
	}
	s, err := NewSupervisor(testInterval, factory, nil, nil)
	require.NoError(t, err)
	cancel, errCh := startSupervisor(t, s)

	require.Eventually(t, s.Alive, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
	assert.True(t, stopped.Load())
}

// 実際の Worker を使い、panic で落ちたあとも残りのジョブが投入順に処理されることを確認する。
func TestSupervisorResumesQueueAfterWorkerCrash(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q, store := NewQueue(10), NewStore(10)

	var (
		mu        sync.Mutex
		processed []string
	)
	h := HandlerFunc(func(_ context.Context, job Job, _ ProgressReporter) error {
		if job.ID == "crash" {
			panic("fatal")
		}
		mu.Lock()
		processed = append(processed, job.ID)
		mu.Unlock()
		return nil
	})
	factory := func() (Runner, error) {
		return NewWorker(q, store, h, WorkerOptions{Logger: logger})
	}

	for _, id := range []string{"first", "crash", "second", "third"} {
		store.Init(id)
		require.NoError(t, q.Enqueue(context.Background(), Job{ID: id}))
	}

	s, err := NewSupervisor(testInterval, factory, nil, logger)
	require.NoError(t, err)
	cancel, errCh := startSupervisor(t, s)
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 3
	}, 2*time.Second, testInterval)

	mu.Lock()
	assert.Equal(t, []string{"first", "second", "third"}, processed)
	mu.Unlock()

	assert.Equal(t, 1, s.Restarts())
	p, _ := store.Get("crash")
	assert.Equal(t, ProgressQueued, p)
	for _, id := range []string{"first", "second", "third"} {
		p, _ := store.Get(id)
		assert.Equal(t, ProgressDone, p, id)
	}

	cancel()
	assert.NoError(t, <-errCh)
}
