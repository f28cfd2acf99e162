package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(logger logrus.FieldLogger, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), AccessLog(logger), Recovery(logger))
	router.GET("/", handlers...)
	return router
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	logger, hook := test.NewNullLogger()
	router := newRouter(logger, func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, id, entry.Data["request_id"])
	assert.Equal(t, logrus.InfoLevel, entry.Level)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", rec.Header().Get(RequestIDHeader))
}

func TestAccessLogLevelFollowsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	router := newRouter(logger, func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	logger, hook := test.NewNullLogger()
	router := newRouter(logger, func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":false,"code":"INTERNAL_ERROR","message":"Internal Server Error","data":{}}`, rec.Body.String())

	var panicked bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Internal Server Error" && e.Data["panic"] == "boom" {
			panicked = true
		}
	}
	assert.True(t, panicked)
}

func TestLimitRejectsOverBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 2)
	router := gin.New()
	router.GET("/", Limit(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
}

func TestLimitNilDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", Limit(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
