// Package sum は加算ジョブとその HTTP ハンドラーを提供します。
package sum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/sumqueue/internal/jobs"
)

// Handler は2つの整数を加算するジョブハンドラーです。jobs.Handler を実装します。
// 計算結果はログに出すだけで、どこにも保存しません。
type Handler struct {
	delay  time.Duration
	logger logrus.FieldLogger
}

// NewHandler は Handler を作成します。delay は1ジョブあたりの処理時間です。
func NewHandler(delay time.Duration, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{delay: delay, logger: logger}
}

// Handle はジョブを処理します。
func (h *Handler) Handle(ctx context.Context, job jobs.Job, report jobs.ProgressReporter) error {
	_, err := h.Compute(ctx, job)
	return err
}

// Compute は待機のあと a+b を計算して返します。オーバーフローはしません。
func (h *Handler) Compute(ctx context.Context, job jobs.Job) (*big.Int, error) {
	if h.delay > 0 {
		timer := time.NewTimer(h.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	req, err := ValidateParams(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload for batch %s: %w", job.ID, err)
	}

	result := new(big.Int).Add(req.A, req.B)
	h.logger.WithFields(logrus.Fields{
		"batch_id": req.BatchID,
		"result":   result.String(),
	}).Info("sum computed")
	return result, nil
}
