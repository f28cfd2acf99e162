package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSupervisorInterval はワーカーの生存確認の間隔です。
const DefaultSupervisorInterval = 10 * time.Second

// Runner は監視対象の実行単位です。*Worker が実装します。
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFactory は再起動のたびに新しい Runner を生成します。
type RunnerFactory func() (Runner, error)

// runHandle は起動中の Runner の終了を監視するためのハンドルです。
type runHandle struct {
	done chan struct{}
	err  error
}

func (h *runHandle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Supervisor はワーカーを一定間隔で監視し、異常終了していれば作り直します。
// 異常終了時に処理中だったジョブは再実行しません。
type Supervisor struct {
	interval time.Duration
	factory  RunnerFactory
	metrics  Metrics
	logger   logrus.FieldLogger

	mu       sync.Mutex
	handle   *runHandle
	restarts int
	lastErr  error
}

// NewSupervisor は Supervisor を作成します。
func NewSupervisor(interval time.Duration, factory RunnerFactory, metrics Metrics, logger logrus.FieldLogger) (*Supervisor, error) {
	if factory == nil {
		return nil, errors.New("factory is nil")
	}
	if interval <= 0 {
		interval = DefaultSupervisorInterval
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Supervisor{
		interval: interval,
		factory:  factory,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run はワーカーを起動し、ctx が終了するまで監視します。
// 終了時は実行中のワーカーが戻るのを待ちます。
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wait()
			return nil
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// Alive はワーカーが実行中かどうかを返します。
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && !s.handle.exited()
}

// Restarts はワーカーを再起動した回数を返します。
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// LastError は直近に終了したワーカーのエラーを返します。
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Supervisor) check(ctx context.Context) {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()

	if h != nil && !h.exited() {
		return
	}
	if ctx.Err() != nil {
		return
	}

	entry := s.logger.WithField("restarts", s.Restarts())
	if h != nil && h.err != nil {
		entry = entry.WithError(h.err)
	}
	entry.Warn("processing worker was dead, restarting")

	if err := s.start(ctx); err != nil {
		s.logger.WithError(err).Error("failed to restart worker")
		return
	}

	s.mu.Lock()
	s.restarts++
	s.mu.Unlock()
	s.metrics.IncWorkerRestarts()
}

func (s *Supervisor) start(ctx context.Context) error {
	runner, err := s.factory()
	if err != nil {
		return err
	}

	h := &runHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("%w: %v", ErrWorkerPanicked, r)
			}
			if h.err != nil {
				s.mu.Lock()
				s.lastErr = h.err
				s.mu.Unlock()
			}
		}()
		h.err = runner.Run(ctx)
	}()

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) wait() {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h != nil {
		<-h.done
	}
}
