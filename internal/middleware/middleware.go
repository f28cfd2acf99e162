// Package middleware は API 共通の gin ミドルウェアを提供します。
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDHeader はリクエストIDを受け渡すヘッダー名です。
	RequestIDHeader = "X-Request-Id"
	// ContextRequestIDKey は gin.Context にリクエストIDを保存するキーです。
	ContextRequestIDKey = "request.id"
)

// RequestID はリクエストIDを採番してレスポンスヘッダーに設定します。
// クライアントが指定した値があればそれを使います。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog はリクエストごとに1行のアクセスログを出力します。
func AccessLog(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString(ContextRequestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request handled")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request handled")
		default:
			entry.Info("request handled")
		}
	}
}

// Recovery はハンドラー内の panic を捕捉し、スタックを記録して 500 を返します。
func Recovery(logger logrus.FieldLogger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString(ContextRequestIDKey),
			"panic":      recovered,
			"stack":      string(debug.Stack()),
		}).Error("Internal Server Error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":  false,
			"code":    "INTERNAL_ERROR",
			"message": "Internal Server Error",
			"data":    gin.H{},
		})
	})
}
