// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/logchain"
	"github.com/coldforge/veriwipe/pkg/selector"
	"github.com/coldforge/veriwipe/pkg/signer"
	"github.com/coldforge/veriwipe/pkg/wipe"
)

func newTestBuilder(t *testing.T) (*Builder, *signer.Signer) {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	s, err := signer.New(log, t.TempDir())
	require.NoError(t, err)

	classificationMap := map[string]string{
		string(selector.StrategySinglePassRandom): "Clear",
		string(selector.StrategyATASecureErase):   "Purge",
	}

	return NewBuilder(s, []string{"NIST SP 800-88"}, classificationMap, "veriwipe", "v0.1.0", "test-build"), s
}

func completedOperation() *wipe.Operation {
	facts := &device.Facts{
		DeviceID:            "/dev/sdz",
		Model:               "Test Drive",
		Serial:              "SN12345",
		MediaClass:          device.MediaSSDSATA,
		CapacityBytes:       256 << 30,
		Transport:           device.TransportSATA,
		SupportsSecureErase: true,
	}
	op := wipe.NewOperation("op-cert-1", facts)
	op.Strategy = selector.StrategyATASecureErase
	op.State = wipe.StateCompleted
	op.StartedAt = time.Now().Add(-time.Minute).UTC()
	ended := time.Now().UTC()
	op.EndedAt = &ended
	op.VerificationSamples.PreSampleHash = "abc123"
	op.VerificationSamples.PostSampleHash = "def456"
	op.VerificationSamples.SampledSectorChecks = 50
	return op
}

func TestBuilderBuild(t *testing.T) {
	b, s := newTestBuilder(t)
	op := completedOperation()

	entries := []logchain.Entry{
		{Sequence: 0, EntryID: "e1", Message: "started", Level: logchain.LevelInfo, EntryHash: "h1"},
		{Sequence: 1, EntryID: "e2", Message: "completed", Level: logchain.LevelInfo, PrevHash: "h1", EntryHash: "h2"},
	}

	cert, err := b.Build(op, entries, "jane.doe")
	require.NoError(t, err)

	assert.NotEmpty(t, cert.CertificateID)
	assert.Equal(t, s.Fingerprint(), cert.ToolInfo.SignerFingerprint)
	assert.Equal(t, "Purge", cert.Compliance.Classification)
	assert.Len(t, cert.LogProjection, 2)
	assert.NotEqual(t, op.DeviceFacts.DeviceID, cert.DeviceSummary.DevicePathHash)
	assert.NotEqual(t, op.DeviceFacts.Serial, cert.DeviceSummary.SerialHash)
	assert.NotEmpty(t, cert.Signature)
	assert.Equal(t, "jane.doe", cert.Operator)
}

func TestBuilderRejectsNonTerminalOperation(t *testing.T) {
	b, _ := newTestBuilder(t)
	op := completedOperation()
	op.State = wipe.StateRunning

	_, err := b.Build(op, nil, "")
	assert.Error(t, err)
}

func TestVerifierRoundTrip(t *testing.T) {
	b, s := newTestBuilder(t)
	op := completedOperation()
	cert, err := b.Build(op, nil, "")
	require.NoError(t, err)

	data, err := json.Marshal(cert)
	require.NoError(t, err)

	trust := NewSingleKeyTrustStore(s.Fingerprint(), s.PublicKey())
	verifier := NewVerifier(trust)

	result := verifier.Verify(data)
	assert.True(t, result.StructureValid)
	assert.True(t, result.SignatureValid)
	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.Redacted)
}

func TestVerifierDetectsTamperedField(t *testing.T) {
	b, s := newTestBuilder(t)
	op := completedOperation()
	cert, err := b.Build(op, nil, "")
	require.NoError(t, err)

	cert.DeviceSummary.Model = "tampered model name"

	data, err := json.Marshal(cert)
	require.NoError(t, err)

	trust := NewSingleKeyTrustStore(s.Fingerprint(), s.PublicKey())
	result := NewVerifier(trust).Verify(data)

	assert.True(t, result.StructureValid)
	assert.False(t, result.SignatureValid)
}

func TestVerifierRejectsMalformedJSON(t *testing.T) {
	trust := NewSingleKeyTrustStore("deadbeef00000000", nil)
	result := NewVerifier(trust).Verify([]byte("not json"))
	assert.False(t, result.StructureValid)
	assert.NotEmpty(t, result.Errors)
}

func TestVerifierRejectsUnknownFingerprint(t *testing.T) {
	b, _ := newTestBuilder(t)
	op := completedOperation()
	cert, err := b.Build(op, nil, "")
	require.NoError(t, err)

	data, err := json.Marshal(cert)
	require.NoError(t, err)

	trust := NewSingleKeyTrustStore("0000000000000000", nil)
	result := NewVerifier(trust).Verify(data)
	assert.True(t, result.StructureValid)
	assert.False(t, result.SignatureValid)
	assert.NotEmpty(t, result.Errors)
}
