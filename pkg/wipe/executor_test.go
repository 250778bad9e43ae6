// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package wipe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/veriwipe/internal/command"
	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/device/raw"
	"github.com/coldforge/veriwipe/pkg/logchain"
	"github.com/coldforge/veriwipe/pkg/selector"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	chain, err := logchain.Open(log, filepath.Join(t.TempDir(), "ops.log.json"))
	require.NoError(t, err)

	return NewExecutor(log, command.NewExecutor(false), chain)
}

func TestExecuteSinglePassRandomOnUSBDevice(t *testing.T) {
	e := newTestExecutor(t)

	fake := raw.NewFake(4 << 20) // 4 MiB
	fake.Fill(0, int(fake.Size()), 0xAA)

	facts := &device.Facts{
		DeviceID:      "/dev/fake0",
		MediaClass:    device.MediaUSB,
		CapacityBytes: fake.Size(),
	}
	op := NewOperation("op-usb-1", facts)
	require.Equal(t, selector.StrategySinglePassRandom, op.Strategy)

	var progressUpdates []float64
	e.Subscribe(func(deviceID string, progress float64, message string) {
		progressUpdates = append(progressUpdates, progress)
	})

	finalState, err := e.Execute(context.Background(), op, fake)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, finalState)
	assert.NotEmpty(t, progressUpdates)
	assert.NotEmpty(t, op.EventRefs)
	assert.NotEmpty(t, op.VerificationSamples.PreSampleHash)
	assert.NotEmpty(t, op.VerificationSamples.PostSampleHash)
	assert.Zero(t, op.VerificationSamples.FailedSectorChecks)
}

func TestExecuteMultipassOverwriteOnHDDWithoutSecureErase(t *testing.T) {
	e := newTestExecutor(t)

	fake := raw.NewFake(2 << 20)
	fake.Fill(0, int(fake.Size()), 0x11)

	facts := &device.Facts{
		DeviceID:            "/dev/fake1",
		MediaClass:          device.MediaHDD,
		CapacityBytes:       fake.Size(),
		SupportsSecureErase: false,
	}
	op := NewOperation("op-hdd-1", facts)
	require.Equal(t, selector.StrategyMultipassOverwrite, op.Strategy)

	finalState, err := e.Execute(context.Background(), op, fake)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, finalState)
	assert.Equal(t, 1.0, op.Progress)
}

// TestExecuteFallsBackFromATASecureEraseToSinglePassRandom drives
// sanitizeWithFallback's actual fallback path end-to-end: an HDD that
// claims ATA secure erase support picks StrategyATASecureErase, but the
// device path doesn't exist on this host, so hdparm's security-set-pass
// step fails and is classified as ErrorUnsupported. That's a recoverable
// error per selector.Fallback, so the operation retries once with
// StrategySinglePassRandom against the same fake device and completes.
func TestExecuteFallsBackFromATASecureEraseToSinglePassRandom(t *testing.T) {
	e := newTestExecutor(t)

	fake := raw.NewFake(1 << 20)
	fake.Fill(0, int(fake.Size()), 0x42)

	facts := &device.Facts{
		DeviceID:            "/dev/veriwipe-test-nonexistent-ata0",
		MediaClass:          device.MediaHDD,
		CapacityBytes:       fake.Size(),
		SupportsSecureErase: true,
	}
	op := NewOperation("op-fallback-1", facts)
	require.Equal(t, selector.StrategyATASecureErase, op.Strategy)

	finalState, err := e.Execute(context.Background(), op, fake)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, finalState)
	assert.True(t, op.fallbackUsed)
	assert.Equal(t, selector.StrategySinglePassRandom, op.Strategy)
	assert.NotEmpty(t, op.Warnings)
}

// staleReadDevice wraps a Fake whose writes succeed but whose reads
// always surface the original, pre-wipe content: it models a device
// that silently drops writes to part of its range (remapped bad
// sectors, firmware that lies about a completed write), the exact
// failure mode phase P3 verification exists to catch.
type staleReadDevice struct {
	*raw.Fake
	stale []byte
}

func newStaleReadDevice(size int64, fillByte byte) *staleReadDevice {
	f := raw.NewFake(size)
	stale := make([]byte, size)
	for i := range stale {
		stale[i] = fillByte
	}
	return &staleReadDevice{Fake: f, stale: stale}
}

func (s *staleReadDevice) ReadAt(offset int64, length int) ([]byte, error) {
	end := offset + int64(length)
	if end > int64(len(s.stale)) {
		end = int64(len(s.stale))
	}
	if offset > end {
		return nil, nil
	}
	out := make([]byte, end-offset)
	copy(out, s.stale[offset:end])
	return out, nil
}

// TestExecuteReachesFailedStateOnVerificationFailure drives the
// operation to a completed sanitize pass followed by a verification
// failure outcome: the device reports its pre-wipe, single-valued
// content back no matter what was written, so every sampled sector
// fails the distinct-byte-value check and Execute ends in StateFailed
// with the verification error recorded, not StateCompleted.
func TestExecuteReachesFailedStateOnVerificationFailure(t *testing.T) {
	e := newTestExecutor(t)

	dev := newStaleReadDevice(1<<20, 0x00)

	facts := &device.Facts{
		DeviceID:      "/dev/fake-stale0",
		MediaClass:    device.MediaUnknown,
		CapacityBytes: dev.Size(),
	}
	op := NewOperation("op-verify-fail-1", facts)
	require.Equal(t, selector.StrategySinglePassRandom, op.Strategy)

	finalState, err := e.Execute(context.Background(), op, dev)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, finalState)
	require.NotNil(t, op.Error)
	assert.Equal(t, selector.ErrorIO, op.Error.Kind)
	assert.NotZero(t, op.VerificationSamples.FailedSectorChecks)
}

func TestProgressIsMonotonic(t *testing.T) {
	e := newTestExecutor(t)

	fake := raw.NewFake(1 << 20)
	facts := &device.Facts{
		DeviceID:      "/dev/fake2",
		MediaClass:    device.MediaUnknown,
		CapacityBytes: fake.Size(),
	}
	op := NewOperation("op-prog-1", facts)

	last := 0.0
	e.Subscribe(func(deviceID string, progress float64, message string) {
		assert.GreaterOrEqual(t, progress, last)
		last = progress
	})

	_, err := e.Execute(context.Background(), op, fake)
	require.NoError(t, err)
}

func TestDistinctByteValues(t *testing.T) {
	t.Run("ConstantFillHasOneDistinctValue", func(t *testing.T) {
		data := make([]byte, 512)
		for i := range data {
			data[i] = 0xFF
		}
		assert.Equal(t, 1, distinctByteValues(data))
	})

	t.Run("HighEntropyDataExceedsThreshold", func(t *testing.T) {
		data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
		assert.GreaterOrEqual(t, distinctByteValues(data), maxDistinctValues)
	})
}
