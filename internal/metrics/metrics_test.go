package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Cataloged("inserted")
		m.Indexed("ok", 3)
		m.Message("answer")
		m.LLMCall(time.Now(), nil)
		m.Retrieved(2)
		m.SetActiveSessions(1)
		m.HTTPRequest("GET", "/health", "200")
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.Cataloged("inserted")
	m.Cataloged("inserted")
	m.Cataloged("duplicate")
	m.Indexed("ok", 4)
	m.LLMCall(time.Now(), errors.New("timeout"))
	m.SetActiveSessions(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.cataloged.WithLabelValues("inserted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cataloged.WithLabelValues("duplicate")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.chunks))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 1, testutil.CollectAndCount(m.llmDuration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Message("greeting")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `oraculo_chat_messages_total{kind="greeting"} 1`)
}
