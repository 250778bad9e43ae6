// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package api is the local-only HTTP surface the web verifier
// front-end consumes, itself a client of the core. It never
// originates an outbound request itself.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"

	"github.com/coldforge/veriwipe/internal/constants"
	"github.com/coldforge/veriwipe/pkg/certificate"
	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/selector"
	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

// APIResponse is the standardized envelope for every response this
// surface returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError mirrors a VeriwipeError for JSON transport.
type APIError struct {
	Code    int               `json:"code"`
	Domain  string            `json:"domain"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Handler serves the verify/info/probe surface. It holds no mutable
// wipe state of its own; certificate verification is pure, and device
// probing opens no device for writing.
type Handler struct {
	logger      logger.Logger
	prober      *device.Prober
	verifier    *certificate.Verifier
	fingerprint string
	buildID     string
}

// NewHandler builds a Handler. verifier may be nil if no trust store
// is configured yet, in which case /v1/verify reports a structured
// error instead of panicking.
func NewHandler(l logger.Logger, prober *device.Prober, verifier *certificate.Verifier, signerFingerprint string) *Handler {
	return &Handler{
		logger:      l,
		prober:      prober,
		verifier:    verifier,
		fingerprint: signerFingerprint,
		buildID:     constants.Version,
	}
}

func (h *Handler) sendSuccess(c *gin.Context, status int, result interface{}) {
	c.JSON(status, APIResponse{Success: true, Result: result})
}

func (h *Handler) sendError(c *gin.Context, err error) {
	if vwErr, ok := err.(*vwerrors.VeriwipeError); ok {
		c.JSON(vwErr.HTTPStatus, APIResponse{
			Success: false,
			Error: &APIError{
				Code:    int(vwErr.Code),
				Domain:  string(vwErr.Domain),
				Message: vwErr.Message,
				Details: vwErr.Details,
				Meta:    vwErr.Metadata,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    int(vwerrors.ServerInternalError),
			Domain:  string(vwerrors.DomainServer),
			Message: "internal server error",
			Details: err.Error(),
		},
	})
}

// Health reports liveness only; it carries no capability information.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Info reports the tool product/build info and the active signer
// fingerprint, so a caller can resolve a certificate's tool_info
// without a second round trip. The directories and compliance
// standards that the --info flag also prints are not included.
func (h *Handler) Info(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, gin.H{
		"product":            constants.ToolName,
		"version":            constants.Version,
		"build_id":           h.buildID,
		"signer_fingerprint": h.fingerprint,
	})
}

// Probe enumerates block devices and reports the strategy the
// selector would choose for each, without executing anything — the
// same behavior as the --probe flag, surfaced over HTTP for the web
// front-end.
func (h *Handler) Probe(c *gin.Context) {
	facts := h.prober.ProbeAll(c.Request.Context())

	type probeResult struct {
		Facts    *device.Facts     `json:"facts"`
		Strategy selector.Strategy `json:"strategy"`
	}

	results := make([]probeResult, 0, len(facts))
	for _, f := range facts {
		results = append(results, probeResult{Facts: f, Strategy: selector.Select(f)})
	}

	h.sendSuccess(c, http.StatusOK, gin.H{
		"devices": results,
		"count":   len(results),
	})
}

// Verify offline-verifies a certificate submitted in the request body.
// No network call is made regardless of the certificate's optional
// anchor field.
func (h *Handler) Verify(c *gin.Context) {
	if h.verifier == nil {
		h.sendError(c, vwerrors.New(vwerrors.CertificateVerificationFailed, "no trust store configured on this host"))
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		h.sendError(c, vwerrors.Wrap(err, vwerrors.ServerBadRequest))
		return
	}

	result := h.verifier.Verify(body)
	h.sendSuccess(c, http.StatusOK, result)
}
