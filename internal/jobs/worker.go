// Package jobs は非同期ジョブ管理機能を提供します。
//
// キュー、進捗ストア、単一のワーカー、ワーカーを監視して再起動する
// スーパーバイザーで構成されます。状態はすべてプロセス内に保持します。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// Worker はキューからジョブを1件ずつ取り出して処理します。
type Worker struct {
	queue      *Queue
	store      *Store
	handler    Handler
	jobTimeout time.Duration
	metrics    Metrics
	logger     logrus.FieldLogger
}

// WorkerOptions は Worker の任意設定です。
type WorkerOptions struct {
	// JobTimeout が正の値の場合、ハンドラーに期限付きの ctx を渡します。
	JobTimeout time.Duration
	Metrics    Metrics
	Logger     logrus.FieldLogger
}

// NewWorker は Worker を作成します。
func NewWorker(queue *Queue, store *Store, handler Handler, opts WorkerOptions) (*Worker, error) {
	if queue == nil {
		return nil, errors.New("queue is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Worker{
		queue:      queue,
		store:      store,
		handler:    handler,
		jobTimeout: opts.JobTimeout,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}, nil
}

// Run は ctx が終了するまでジョブを処理し続けます。
// ハンドラーのエラーではループを止めません。
// ハンドラー内の panic は処理中のジョブを破棄して ErrWorkerPanicked を返します。
func (w *Worker) Run(ctx context.Context) (err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithFields(logrus.Fields{
				"batch_id": current,
				"panic":    r,
				"stack":    string(debug.Stack()),
			}).Error("worker terminated by panic")
			err = fmt.Errorf("%w: %v", ErrWorkerPanicked, r)
		}
	}()

	for {
		job, derr := w.queue.Dequeue(ctx)
		if derr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return derr
		}
		w.metrics.SetQueueDepth(w.queue.Len())

		current = job.ID
		w.process(ctx, job)
		current = ""
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	report := func(percent int) {
		w.store.Set(job.ID, percent)
	}

	start := time.Now()
	err := w.handler.Handle(jobCtx, job, report)
	w.metrics.ObserveJobDuration(time.Since(start).Seconds())

	if err != nil {
		// 進捗は更新しない。ポーリング側からは処理中のまま見える。
		w.metrics.IncJobsFailed()
		w.logger.WithFields(logrus.Fields{
			"batch_id": job.ID,
			"error":    err.Error(),
		}).Error("error processing request")
		return
	}

	if !w.store.Set(job.ID, ProgressDone) {
		w.logger.WithField("batch_id", job.ID).Debug("progress entry already evicted")
	}
	w.metrics.IncJobsCompleted()
}
