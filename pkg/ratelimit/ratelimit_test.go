package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/notification-mailer/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNew_Defaults(t *testing.T) {
	rl := New(Config{})
	defer rl.Stop()

	assert.Equal(t, DefaultPreviewConfig(), rl.Config())
}

func TestNew_KeepsExplicitValues(t *testing.T) {
	cfg := Config{Rate: 1, Burst: 2, CleanupInterval: time.Second, MaxAge: time.Minute}
	rl := New(cfg)
	defer rl.Stop()

	assert.Equal(t, cfg, rl.Config())
}

func TestAllow_BurstPerClient(t *testing.T) {
	rl := New(Config{Rate: 0.001, Burst: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	// another client has its own bucket
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.Len())
}

func TestAllow_Concurrent(t *testing.T) {
	rl := New(Config{Rate: 0.001, Burst: 10})
	defer rl.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("10.0.0.9") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestForgetIdle(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 1, MaxAge: time.Minute})
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("old")
	now = now.Add(50 * time.Second)
	rl.Allow("recent")

	now = now.Add(30 * time.Second)
	rl.forgetIdle()

	assert.Equal(t, 1, rl.Len())
	_, kept := rl.clients["recent"]
	assert.True(t, kept)
}

func TestStop_Idempotent(t *testing.T) {
	rl := New(Config{})
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestMiddleware(t *testing.T) {
	rl := New(Config{Rate: 0.001, Burst: 1})
	defer rl.Stop()

	router := gin.New()
	router.GET("/limited", rl.Middleware("test-route"), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	before := testutil.ToFloat64(metrics.HTTPRateLimited.WithLabelValues("test-route"))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "192.0.2.10:4711"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := do()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "ok", first.Body.String())

	second := do()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "TOO_MANY_REQUESTS")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HTTPRateLimited.WithLabelValues("test-route")))
}
