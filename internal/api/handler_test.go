// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/veriwipe/internal/command"
	"github.com/coldforge/veriwipe/pkg/certificate"
	"github.com/coldforge/veriwipe/pkg/device"
	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
	"github.com/coldforge/veriwipe/pkg/selector"
	"github.com/coldforge/veriwipe/pkg/signer"
	"github.com/coldforge/veriwipe/pkg/wipe"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)
	return l
}

func newTestHandler(t *testing.T, verifier *certificate.Verifier) *Handler {
	t.Helper()
	prober := device.NewProber(testLogger(t), command.NewExecutor(false))
	return NewHandler(testLogger(t), prober, verifier, "fingerprint123")
}

func performRequest(h gin.HandlerFunc, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
	h(c)
	return w
}

func TestHealthReportsHealthy(t *testing.T) {
	h := newTestHandler(t, nil)
	w := performRequest(h.Health, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestInfoReportsToolAndFingerprint(t *testing.T) {
	h := newTestHandler(t, nil)
	w := performRequest(h.Info, http.MethodGet, "/v1/info", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "veriwipe", result["product"])
	assert.Equal(t, "fingerprint123", result["signer_fingerprint"])
}

func TestProbeSucceedsEvenWithNoDevices(t *testing.T) {
	h := newTestHandler(t, nil)
	w := performRequest(h.Probe, http.MethodGet, "/v1/probe", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestVerifyWithoutTrustStoreReturnsStructuredError(t *testing.T) {
	h := newTestHandler(t, nil)
	w := performRequest(h.Verify, http.MethodPost, "/v1/verify", []byte(`{}`))

	assert.NotEqual(t, http.StatusOK, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(vwerrors.DomainCertificate), resp.Error.Domain)
}

func TestVerifyRoundTripsAValidCertificate(t *testing.T) {
	log := testLogger(t)
	s, err := signer.New(log, t.TempDir())
	require.NoError(t, err)

	builder := certificate.NewBuilder(s, []string{"NIST SP 800-88"},
		map[string]string{string(selector.StrategySinglePassRandom): "Clear"},
		"veriwipe", "v0.1.0", "test-build")

	facts := &device.Facts{
		DeviceID:      "/dev/sdz",
		MediaClass:    device.MediaSSDSATA,
		CapacityBytes: 1 << 30,
	}
	op := wipe.NewOperation("op-http-1", facts)
	op.Strategy = selector.StrategySinglePassRandom
	op.State = wipe.StateCompleted
	op.StartedAt = time.Now().Add(-time.Minute).UTC()
	ended := time.Now().UTC()
	op.EndedAt = &ended

	cert, err := builder.Build(op, nil, "operator")
	require.NoError(t, err)
	data, err := json.Marshal(cert)
	require.NoError(t, err)

	trust := certificate.NewSingleKeyTrustStore(s.Fingerprint(), s.PublicKey())
	verifier := certificate.NewVerifier(trust)

	h := newTestHandler(t, verifier)
	w := performRequest(h.Verify, http.MethodPost, "/v1/verify", data)

	require.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}
