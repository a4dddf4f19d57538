package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/api/admin"
	"github.com/liliang-cn/oraculo/internal/api/chat"
	"github.com/liliang-cn/oraculo/internal/api/middleware"
	"github.com/liliang-cn/oraculo/internal/metrics"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	// RequestsPerHour limits chat requests per client IP; zero disables it.
	RequestsPerHour int
}

// Services are the handlers' dependencies
type Services struct {
	Chat    chat.Submitter
	Admin   admin.Deps
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(svc Services, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(svc.Logger))
	r.Use(middleware.Metrics(svc.Metrics))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if svc.Metrics != nil {
		r.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))
	}

	// Chat API (public, keyed by user id)
	chatGroup := r.Group("/api/chat")
	if cfg.RequestsPerHour > 0 {
		chatGroup.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RequestsPerHour)))
	}
	chat.NewHandler(svc.Chat).RegisterRoutes(chatGroup)

	// Admin API (requires API key)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	admin.NewHandler(svc.Admin).RegisterRoutes(adminGroup)

	return r
}
