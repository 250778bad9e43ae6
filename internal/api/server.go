// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
)

// Server owns the http.Server backing a Handler's gin engine,
// giving callers graceful shutdown through context cancellation
// rather than gin's blocking Run().
type Server struct {
	logger logger.Logger
	http   *http.Server
}

// NewServer builds a Server bound to addr, serving handler's routes
// under /v1 plus an unauthenticated /health. Gin runs in debug mode
// only when logLevel is "debug", mirroring the rest of this module's
// single log-level knob rather than introducing a separate environment
// setting.
func NewServer(l logger.Logger, addr string, handler *Handler, logLevel string) *Server {
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(l))

	engine.GET("/health", handler.Health)
	handler.RegisterRoutes(engine.Group("/v1"))

	return &Server{
		logger: l,
		http:   &http.Server{Addr: addr, Handler: engine},
	}
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("local api surface listening", "addr", s.http.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("api server startup failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
