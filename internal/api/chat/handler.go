package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/service"
)

// Submitter queues a message and delivers its result
type Submitter interface {
	Submit(ctx context.Context, msg domain.Message) <-chan service.Result
}

// Handler handles chat API requests
type Handler struct {
	dispatcher Submitter
}

// NewHandler creates a new chat handler
func NewHandler(dispatcher Submitter) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/messages", h.PostMessage)
}

// PostMessage answers one message from a chat surface
func (h *Handler) PostMessage(c *gin.Context) {
	var msg domain.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	select {
	case res := <-h.dispatcher.Submit(ctx, msg):
		if res.Err != nil {
			c.JSON(statusFor(res.Err), gin.H{"error": res.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, res.Reply)
	case <-ctx.Done():
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ctx.Err().Error()})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
