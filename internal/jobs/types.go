package jobs

import (
	"context"
	"errors"
)

const (
	// ProgressQueued は投入直後のジョブの進捗値です。
	ProgressQueued = 0
	// ProgressDone は正常終了したジョブの進捗値です。
	ProgressDone = 100

	// DefaultQueueCapacity はキューに保持できる未処理ジョブの上限です。
	DefaultQueueCapacity = 10000
	// DefaultProgressCapacity は進捗を追跡するジョブIDの上限です。
	DefaultProgressCapacity = 1000
)

var (
	// ErrQueueFull はキューが満杯で投入できなかったことを表します。
	ErrQueueFull = errors.New("job queue is full")
	// ErrWorkerPanicked はワーカーが回復不能な状態で終了したことを表します。
	ErrWorkerPanicked = errors.New("worker panicked")
)

// Job はキューに積まれる1件の処理単位です。投入後は変更しません。
type Job struct {
	ID      string         `json:"batch_id"`
	Payload map[string]any `json:"payload"`
}

// ProgressReporter は進捗更新用コールバックです。
type ProgressReporter func(percent int)

// Handler はジョブ本体の処理を実装します。
type Handler interface {
	Handle(ctx context.Context, job Job, report ProgressReporter) error
}

// HandlerFunc は関数を Handler として扱うためのアダプタです。
type HandlerFunc func(ctx context.Context, job Job, report ProgressReporter) error

// Handle は f(ctx, job, report) を呼び出します。
func (f HandlerFunc) Handle(ctx context.Context, job Job, report ProgressReporter) error {
	return f(ctx, job, report)
}

// Metrics はジョブ処理のメトリクス記録先です。
type Metrics interface {
	IncJobsSubmitted()
	IncJobsCompleted()
	IncJobsFailed()
	IncWorkerRestarts()
	ObserveJobDuration(seconds float64)
	SetQueueDepth(n int)
	SetProgressTracked(n int)
}

type noopMetrics struct{}

func (noopMetrics) IncJobsSubmitted()          {}
func (noopMetrics) IncJobsCompleted()          {}
func (noopMetrics) IncJobsFailed()             {}
func (noopMetrics) IncWorkerRestarts()         {}
func (noopMetrics) ObserveJobDuration(float64) {}
func (noopMetrics) SetQueueDepth(int)          {}
func (noopMetrics) SetProgressTracked(int)     {}

func clampProgress(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
