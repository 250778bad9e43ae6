// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	s, err := New(log, t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewGeneratesKeypairOnFirstUse(t *testing.T) {
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	dir := t.TempDir()
	s, err := New(log, dir)
	require.NoError(t, err)
	assert.Len(t, s.Fingerprint(), 16)

	privInfo, err := os.Stat(filepath.Join(dir, privateKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(privateKeyPerm), privInfo.Mode().Perm())

	pubInfo, err := os.Stat(filepath.Join(dir, publicKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(publicKeyPerm), pubInfo.Mode().Perm())
}

func TestNewReloadsExistingKeypairWithStableFingerprint(t *testing.T) {
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	dir := t.TempDir()
	first, err := New(log, dir)
	require.NoError(t, err)

	second, err := New(log, dir)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	s := newTestSigner(t)

	payload := []byte(`{"certificate_id":"abc","issued_at":"2026-01-01T00:00:00Z"}`)

	sig, err := s.Sign(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	ok, err := Verify(s.PublicKey(), payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyFailsOnTamperedPayload(t *testing.T) {
	s := newTestSigner(t)

	payload := []byte(`{"a":1}`)
	sig, err := s.Sign(payload)
	require.NoError(t, err)

	ok, err := Verify(s.PublicKey(), []byte(`{"a":2}`), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyFailsOnMalformedSignature(t *testing.T) {
	s := newTestSigner(t)

	ok, err := Verify(s.PublicKey(), []byte("payload"), "not-base64!!")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestLoadPublicKeyRoundTrip(t *testing.T) {
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	dir := t.TempDir()
	s, err := New(log, dir)
	require.NoError(t, err)

	loaded, err := LoadPublicKey(filepath.Join(dir, publicKeyFile))
	require.NoError(t, err)
	assert.True(t, loaded.Equal(s.PublicKey()))
}
