package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/oraculo/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func do(r http.Handler, method string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth("segredo"))

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "errado"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "segredo"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer segredo"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(r, http.MethodGet, tt.headers).Code)
		})
	}

	assert.Equal(t, http.StatusOK, do(newEngine(Auth("")), http.MethodGet, nil).Code)
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://familia.example"}))

	w := do(r, http.MethodGet, map[string]string{"Origin": "https://familia.example"})
	assert.Equal(t, "https://familia.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, map[string]string{"Origin": "https://outro.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodOptions, map[string]string{"Origin": "https://familia.example"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiter_AllowsBurstThenRefills(t *testing.T) {
	l := NewRateLimiter(3)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("10.0.0.1")
		require.True(t, ok, "request %d", i)
	}
	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, (20 * time.Minute).Seconds(), wait.Seconds(), 1)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok)

	now = now.Add(20 * time.Minute)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimit_Returns429(t *testing.T) {
	r := newEngine(RateLimit(NewRateLimiter(1)))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, nil).Code)
	w := do(r, http.MethodGet, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestMetrics_CountsByRoute(t *testing.T) {
	m := metrics.New()
	r := newEngine(Metrics(m))

	do(r, http.MethodGet, nil)
	do(r, http.MethodGet, nil)

	n, err := testutil.GatherAndCount(m.Registry(), "oraculo_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
