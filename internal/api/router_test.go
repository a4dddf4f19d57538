package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/metrics"
	"github.com/liliang-cn/oraculo/internal/service"
)

type echoDispatcher struct{}

func (echoDispatcher) Submit(_ context.Context, msg domain.Message) <-chan service.Result {
	ch := make(chan service.Result, 1)
	ch <- service.Result{Reply: domain.Reply{Kind: domain.ReplyAnswer, Text: msg.Body}}
	return ch
}

func newRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(Services{Chat: echoDispatcher{}, Metrics: metrics.New()}, cfg)
}

func request(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newRouter(RouterConfig{APIKey: "k", AllowOrigins: []string{"*"}})

	w := request(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = request(r, http.MethodPost, "/api/chat/messages", `{"user_id":"u","message":"oi"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "oraculo_http_requests_total")
}

func TestRouter_AdminRequiresKey(t *testing.T) {
	r := newRouter(RouterConfig{APIKey: "k"})

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/admin/stats", "").Code)
}

func TestRouter_ChatRateLimit(t *testing.T) {
	r := newRouter(RouterConfig{RequestsPerHour: 2})

	body := `{"user_id":"u","message":"oi"}`
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/api/chat/messages", body).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/api/chat/messages", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodPost, "/api/chat/messages", body).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", "").Code)
}
