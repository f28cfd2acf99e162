package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/sumqueue/internal/config"
)

// Manager はジョブの投入と状態管理を担います。
// キュー・進捗ストア・スーパーバイザーは起動時に一度だけ生成します。
type Manager struct {
	cfg        *config.Config
	queue      *Queue
	store      *Store
	supervisor *Supervisor
	metrics    Metrics
	logger     logrus.FieldLogger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, handler Handler, metrics Metrics, logger logrus.FieldLogger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	queue := NewQueue(cfg.QueueCapacity)
	store := NewStore(cfg.ProgressCapacity)

	factory := func() (Runner, error) {
		return NewWorker(queue, store, handler, WorkerOptions{
			JobTimeout: cfg.JobTimeout,
			Metrics:    metrics,
			Logger:     logger.WithField("component", "worker"),
		})
	}
	supervisor, err := NewSupervisor(cfg.SupervisorInterval, factory, metrics, logger.WithField("component", "supervisor"))
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:        cfg,
		queue:      queue,
		store:      store,
		supervisor: supervisor,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Run はワーカーとスーパーバイザーを起動し、ctx が終了するまでブロックします。
func (m *Manager) Run(ctx context.Context) error {
	m.logger.WithFields(logrus.Fields{
		"queue_capacity":    m.queue.Cap(),
		"progress_capacity": m.cfg.ProgressCapacity,
		"interval":          m.cfg.SupervisorInterval.String(),
	}).Info("starting job worker")
	return m.supervisor.Run(ctx)
}

// Submit は進捗を 0 で登録してからジョブをキューに投入します。
// キューが満杯の間はブロックし、ctx が先に終了した場合は登録した進捗を元に戻します。
func (m *Manager) Submit(ctx context.Context, job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job.ID is required")
	}

	undo := m.store.Init(job.ID)
	if err := m.enqueue(ctx, job); err != nil {
		undo()
		m.metrics.SetProgressTracked(m.store.Len())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrQueueFull, err)
		}
		return err
	}

	m.metrics.IncJobsSubmitted()
	m.metrics.SetQueueDepth(m.queue.Len())
	m.metrics.SetProgressTracked(m.store.Len())
	return nil
}

// enqueue は QueueBlockWhenFull が無効なら待たずに ErrQueueFull を返します。
func (m *Manager) enqueue(ctx context.Context, job Job) error {
	if !m.cfg.QueueBlockWhenFull {
		return m.queue.TryEnqueue(job)
	}
	return m.queue.Enqueue(ctx, job)
}

// Progress はジョブの進捗を返します。
func (m *Manager) Progress(jobID string) (int, bool) {
	return m.store.Get(jobID)
}

// QueuedJobs は未処理のジョブを投入順に返します。
func (m *Manager) QueuedJobs() []Job {
	return m.queue.Snapshot()
}

// Status は /health 向けの状態を返します。
func (m *Manager) Status() Status {
	return Status{
		WorkerAlive:   m.supervisor.Alive(),
		Restarts:      m.supervisor.Restarts(),
		QueueLength:   m.queue.Len(),
		QueueCapacity: m.queue.Cap(),
		Tracked:       m.store.Len(),
	}
}

// Status はジョブ基盤の稼働状況です。
type Status struct {
	WorkerAlive   bool
	Restarts      int
	QueueLength   int
	QueueCapacity int
	Tracked       int
}
