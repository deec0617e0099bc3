package httpapi

import (
	"net/http"

	"deliveroute-be/internal/middleware"

	"github.com/gin-gonic/gin"
)

// NewRouter assembles the engine's HTTP surface. The refund webhook is
// mounted unauthenticated (the gateway signs its callbacks) and throttled
// per source IP; everything under /api requires an authenticated actor.
func NewRouter(h *Handler, webhook http.HandlerFunc, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogging())

	r.POST("/webhooks/refund", middleware.RateLimit(), gin.WrapF(webhook))

	api := r.Group("/api", middleware.Auth(jwtSecret), middleware.RateLimit())
	{
		api.GET("/orders/:id", h.GetOrder)
		api.GET("/orders/:id/cancelability", h.CheckCancelability)
		api.POST("/orders/:id/cancellation", h.RequestCancellation)
		api.POST("/orders/:id/status", h.AdvanceStatus)
		api.GET("/settlement/orders", h.TerminalOrders)
	}

	return r
}
