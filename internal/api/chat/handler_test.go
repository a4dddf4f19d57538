package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/service"
)

type fakeDispatcher struct {
	got    []domain.Message
	result service.Result
}

func (d *fakeDispatcher) Submit(_ context.Context, msg domain.Message) <-chan service.Result {
	d.got = append(d.got, msg)
	ch := make(chan service.Result, 1)
	ch <- d.result
	return ch
}

func post(t *testing.T, d Submitter, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(d).RegisterRoutes(r.Group("/api/chat"))

	req := httptest.NewRequest(http.MethodPost, "/api/chat/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostMessage_ReturnsReply(t *testing.T) {
	d := &fakeDispatcher{result: service.Result{Reply: domain.Reply{Kind: domain.ReplyGreeting, Text: "Olá, Ana!"}}}

	w := post(t, d, `{"user_id":"5511999","display_name":"Ana","message":"oi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var reply domain.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, "Olá, Ana!", reply.Text)
	require.Len(t, d.got, 1)
	assert.Equal(t, domain.Message{UserID: "5511999", DisplayName: "Ana", Body: "oi"}, d.got[0])
}

func TestPostMessage_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing user", `{"message":"oi"}`, nil, http.StatusBadRequest},
		{"malformed", `{`, nil, http.StatusBadRequest},
		{"empty message", `{"user_id":"u","message":" "}`, domain.ErrEmptyMessage, http.StatusBadRequest},
		{"queue full", `{"user_id":"u","message":"oi"}`, domain.ErrQueueFull, http.StatusTooManyRequests},
		{"internal", `{"user_id":"u","message":"oi"}`, assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, &fakeDispatcher{result: service.Result{Err: tt.err}}, tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}
