package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const unmatchedRoute = "unmatched"

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if allowsAnyOrigin(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		// Session cookies only travel to explicitly listed origins.
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// observeRequest writes the access log line and the latency histogram sample.
func (h *httpHandler) observeRequest(c *gin.Context) {
	started := time.Now()
	c.Next()
	elapsed := time.Since(started)

	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	status := c.Writer.Status()
	h.metrics.ObserveRequest(c.Request.Method, route, status, elapsed)

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Duration("latency", elapsed),
	}
	if userID := c.GetString(userIDContextKey); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("http request", fields...)
		return
	}
	h.logger.Info("http request", fields...)
}
