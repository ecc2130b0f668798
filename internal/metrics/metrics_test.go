package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
)

func TestNotifyRunStatus(t *testing.T) {
	m := NewManager()

	m.NotifyRunStatus(pipeline.StatusEvent{Status: pipeline.StatusStarted})
	m.NotifyRunStatus(pipeline.StatusEvent{Status: pipeline.StatusStarted})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeRuns))

	m.NotifyRunStatus(pipeline.StatusEvent{Status: pipeline.StatusCompleted, Duration: 50 * time.Millisecond})
	m.NotifyRunStatus(pipeline.StatusEvent{Status: pipeline.StatusCancelled, Duration: time.Millisecond})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("cancelled")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestCacheAndPurgeCounters(t *testing.T) {
	m := NewManager()
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordPurged(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.purgedRunTotal))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/ping", "GET", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "hr_optimizer_http_requests_total"))
}
