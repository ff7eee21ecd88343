package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/footfall/internal/api/handlers"
	"github.com/your-org/footfall/internal/api/ws"
	"github.com/your-org/footfall/internal/auth"
)

// Store is everything the API reads from Postgres.
type Store interface {
	handlers.SessionStore
	handlers.EventStore
}

type RouterConfig struct {
	APIKey    string
	DB        Store
	Objects   handlers.ObjectStore
	Publisher handlers.Publisher
	Hub       *ws.Hub
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig()))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Sessions
	sessionH := handlers.NewSessionHandler(cfg.DB, cfg.Objects, cfg.Publisher)
	v1.POST("/sessions", sessionH.Create)
	v1.GET("/sessions", sessionH.List)
	v1.GET("/sessions/:id", sessionH.Get)
	v1.POST("/sessions/:id/start", sessionH.Start)
	v1.POST("/sessions/:id/stop", sessionH.Stop)
	v1.DELETE("/sessions/:id", sessionH.Delete)
	v1.POST("/sessions/:id/detections", sessionH.Detections)
	v1.GET("/sessions/:id/summary", sessionH.Summary)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB)
	v1.GET("/sessions/:id/events", eventH.List)
	v1.GET("/sessions/:id/counts", eventH.Counts)

	return r
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AddAllowHeaders("X-API-Key")
	return c
}
