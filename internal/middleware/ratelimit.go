package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter はプロセス全体で共有するトークンバケットです。
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter は秒間 rps 件、バースト burst 件の RateLimiter を作成します。
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Allow は今すぐ1件処理してよいかを返します。
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Limit は上限を超えたリクエストに 429 を返すミドルウェアです。
// rl が nil の場合は何もしません。
func Limit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.Allow() {
			c.Next()
			return
		}
		// Retry-After は秒数で返す
		c.Header("Retry-After", strconv.Itoa(1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"status":  false,
			"code":    "TOO_MANY_REQUESTS",
			"message": "too many requests, try again later",
			"data":    gin.H{},
		})
	}
}
