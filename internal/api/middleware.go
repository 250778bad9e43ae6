// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stratastor/logger"
)

// LoggerMiddleware logs each request's method, path, status and
// duration with a stable per-request ID, skipping the health check.
func LoggerMiddleware(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		if path == "/health" {
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-Id", requestID)
		}
		c.Set("request_id", requestID)

		c.Next()

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		}

		switch {
		case c.Writer.Status() >= 500:
			l.Error("request", logAttrs(attrs)...)
		case c.Writer.Status() >= 400:
			l.Warn("request", logAttrs(attrs)...)
		default:
			l.Info("request", logAttrs(attrs)...)
		}
	}
}

func logAttrs(attrs []slog.Attr) []interface{} {
	args := make([]interface{}, len(attrs)*2)
	for i, attr := range attrs {
		args[i*2] = attr.Key
		args[i*2+1] = attr.Value.Any()
	}
	return args
}
