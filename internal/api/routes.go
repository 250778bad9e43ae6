// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the verify/info/probe surface under router.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/info", h.Info)
	router.GET("/probe", h.Probe)
	router.POST("/verify", h.Verify)
}
