// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rootconfig "github.com/coldforge/veriwipe/config"
	"github.com/coldforge/veriwipe/pkg/certificate"
	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/selector"
	"github.com/coldforge/veriwipe/pkg/signer"
	"github.com/coldforge/veriwipe/pkg/wipe"
)

// testConfig builds a fully wireable Config rooted under a temp directory,
// bypassing the LoadConfig singleton so each test gets isolated signer keys,
// a fresh hash-chained log and its own certificate output directory.
func testConfig(t *testing.T) *rootconfig.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &rootconfig.Config{}
	cfg.Server.LogLevel = "debug"
	cfg.Server.APIAddr = "127.0.0.1:0"
	cfg.Signer.KeysDir = filepath.Join(dir, "keys")
	cfg.LogChain.Path = filepath.Join(dir, "operations.log.json")
	cfg.Certificates.Dir = dir
	cfg.Compliance.Standards = []string{"NIST SP 800-88"}
	cfg.Compliance.ClassificationMap = map[string]string{
		string(selector.StrategySinglePassRandom): "Clear",
	}
	cfg.Queue.MaxConcurrentWipes = 1
	cfg.Queue.ChainVerifyCron = "0 */6 * * *"
	return cfg
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	fn()
	os.Stdout = orig
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestRunInfoPrintsFingerprintAndDirs(t *testing.T) {
	cfg := testConfig(t)

	out := captureStdout(t, func() {
		require.NoError(t, runInfo(cfg))
	})

	assert.Contains(t, out, "signer fingerprint")
	assert.Contains(t, out, cfg.Signer.KeysDir)
	assert.Contains(t, out, "NIST SP 800-88")
}

func TestRunProbeSucceedsRegardlessOfDeviceCount(t *testing.T) {
	cfg := testConfig(t)

	out := captureStdout(t, func() {
		require.NoError(t, runProbe(cfg))
	})

	assert.NotEmpty(t, out)
}

func TestRunVerifyAcceptsItsOwnValidCertificate(t *testing.T) {
	cfg := testConfig(t)

	log := testCmdLogger(t)
	s, err := signer.New(log, cfg.Signer.KeysDir)
	require.NoError(t, err)

	builder := certificate.NewBuilder(s, cfg.Compliance.Standards, cfg.Compliance.ClassificationMap,
		"veriwipe", "v0.1.0", "test-build")

	facts := &device.Facts{
		DeviceID:      "/dev/sdz",
		MediaClass:    device.MediaSSDSATA,
		CapacityBytes: 1 << 30,
	}
	op := wipe.NewOperation("op-cmd-1", facts)
	op.Strategy = selector.StrategySinglePassRandom
	op.State = wipe.StateCompleted

	cert, err := builder.Build(op, nil, "operator")
	require.NoError(t, err)
	data, err := json.Marshal(cert)
	require.NoError(t, err)

	certPath := filepath.Join(t.TempDir(), "cert.json")
	require.NoError(t, os.WriteFile(certPath, data, 0644))

	out := captureStdout(t, func() {
		require.NoError(t, runVerify(cfg, certPath))
	})

	assert.Contains(t, out, "VALID")
	assert.NotContains(t, out, "INVALID")
}

func TestRunVerifyRejectsTamperedCertificate(t *testing.T) {
	cfg := testConfig(t)

	log := testCmdLogger(t)
	s, err := signer.New(log, cfg.Signer.KeysDir)
	require.NoError(t, err)

	builder := certificate.NewBuilder(s, cfg.Compliance.Standards, cfg.Compliance.ClassificationMap,
		"veriwipe", "v0.1.0", "test-build")

	facts := &device.Facts{DeviceID: "/dev/sdz", MediaClass: device.MediaSSDSATA, CapacityBytes: 1 << 30}
	op := wipe.NewOperation("op-cmd-2", facts)
	op.Strategy = selector.StrategySinglePassRandom
	op.State = wipe.StateCompleted

	cert, err := builder.Build(op, nil, "operator")
	require.NoError(t, err)
	data, err := json.Marshal(cert)
	require.NoError(t, err)

	// Flip the certificate ID to simulate a tampered file without touching
	// the signature bytes.
	tampered := bytes.Replace(data, []byte(cert.CertificateID), []byte("tampered-id-00000000"), 1)

	certPath := filepath.Join(t.TempDir(), "cert.json")
	require.NoError(t, os.WriteFile(certPath, tampered, 0644))

	// runVerify calls os.Exit(1) on an invalid certificate, which would
	// kill the test binary; exercise the verifier directly instead to
	// confirm the same detection path runVerify relies on.
	verifyData, err := os.ReadFile(certPath)
	require.NoError(t, err)

	trust := certificate.NewSingleKeyTrustStore(s.Fingerprint(), s.PublicKey())
	verifier := certificate.NewVerifier(trust)
	result := verifier.Verify(verifyData)

	assert.False(t, result.SignatureValid)
}

func testCmdLogger(t *testing.T) logger.Logger {
	t.Helper()
	l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)
	return l
}
