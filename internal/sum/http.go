package sum

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/sumqueue/internal/jobs"
)

// JobSubmitter はジョブをキューに投入するためのインターフェースです。
type JobSubmitter interface {
	Submit(ctx context.Context, job jobs.Job) error
}

// ProgressReader はジョブの進捗を参照するためのインターフェースです。
type ProgressReader interface {
	Progress(jobID string) (int, bool)
}

// QueueInspector は未処理のジョブを参照するためのインターフェースです。
type QueueInspector interface {
	QueuedJobs() []jobs.Job
}

type progressQuery struct {
	BatchID string `form:"batch_id" binding:"required"`
}

// SubmitHandler は POST /sum のハンドラーを返します。
// 計算結果は返さず、受け付けたことだけを応答します。
func SubmitHandler(svc JobSubmitter, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := ParseRequest(c.Request.Body)
		if err != nil {
			logger.WithError(err).Warn("rejected sum request")
			respondWithError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"batch_id": req.BatchID,
			"a":        req.A.String(),
			"b":        req.B.String(),
		}).Info("sum request accepted")

		job := jobs.Job{ID: req.BatchID, Payload: req.Payload}
		if err := svc.Submit(c.Request.Context(), job); err != nil {
			if errors.Is(err, jobs.ErrQueueFull) {
				err = &Error{Code: CodeQueueFull, Message: msgQueueFull}
			}
			logger.WithError(err).WithField("batch_id", req.BatchID).Error("failed to enqueue job")
			respondWithError(c, err)
			return
		}

		respond(c, http.StatusOK, true, msgSuccess, req.Payload)
	}
}

// ProgressHandler は GET /request_progress のハンドラーを返します。
func ProgressHandler(reader ProgressReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query progressQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				respondWithError(c, validationError(msgBatchIDMissing))
				return
			}
			respondWithError(c, validationError(err.Error()))
			return
		}

		progress, found := reader.Progress(query.BatchID)
		data := gin.H{
			"batch_id": query.BatchID,
			"progress": progress,
		}
		if !found {
			respond(c, http.StatusBadRequest, false, msgNoSuchID, data)
			return
		}
		respond(c, http.StatusOK, true, msgSuccess, data)
	}
}

// QueueDataHandler は GET /queue_data のハンドラーを返します。
// 未処理ジョブのペイロードを投入順に返します。
func QueueDataHandler(inspector QueueInspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		queued := inspector.QueuedJobs()
		payloads := make([]map[string]any, 0, len(queued))
		for _, job := range queued {
			payloads = append(payloads, job.Payload)
		}
		c.JSON(http.StatusOK, payloads)
	}
}

func respond(c *gin.Context, status int, ok bool, message string, data any) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, gin.H{
		"status":  ok,
		"message": message,
		"data":    data,
	})
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		if apiErr.Code == CodeQueueFull {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":  false,
			"code":    apiErr.Code,
			"message": apiErr.Message,
			"data":    gin.H{},
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"status":  false,
			"code":    "REQUEST_CANCELED",
			"message": "request was canceled",
			"data":    gin.H{},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  false,
			"code":    CodeInternalError,
			"message": msgInternal,
			"data":    gin.H{},
		})
	}
}
