// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package wipequeue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/veriwipe/internal/command"
	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/device/raw"
	"github.com/coldforge/veriwipe/pkg/logchain"
	"github.com/coldforge/veriwipe/pkg/wipe"
)

func newTestQueue(t *testing.T, maxConcurrent int) *Queue {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)

	chain, err := logchain.Open(log, filepath.Join(t.TempDir(), "ops.log.json"))
	require.NoError(t, err)

	executor := wipe.NewExecutor(log, command.NewExecutor(false), chain)

	q, err := New(log, executor, chain, maxConcurrent)
	require.NoError(t, err)
	return q
}

func usbOperation(id string) (*wipe.Operation, *raw.Fake) {
	facts := &device.Facts{
		DeviceID:      "/dev/fake-" + id,
		MediaClass:    device.MediaUSB,
		CapacityBytes: 2 << 20,
	}
	return wipe.NewOperation(id, facts), raw.NewFake(2 << 20)
}

func TestSubmitRejectsSecondOperationOnOwnedDevice(t *testing.T) {
	q := newTestQueue(t, 4)

	op1, dev1 := usbOperation("op-1")
	require.NoError(t, q.Submit(context.Background(), op1, dev1))
	assert.True(t, q.IsOwned(op1.DeviceFacts.DeviceID))

	op2 := wipe.NewOperation("op-2", op1.DeviceFacts)
	err := q.Submit(context.Background(), op2, dev1)
	assert.Error(t, err)

	waitForDrain(t, q)
}

func TestSubmitEnforcesConcurrencyLimit(t *testing.T) {
	q := newTestQueue(t, 1)

	op1, dev1 := usbOperation("op-a")
	require.NoError(t, q.Submit(context.Background(), op1, dev1))

	op2, dev2 := usbOperation("op-b")
	err := q.Submit(context.Background(), op2, dev2)
	assert.Error(t, err)

	waitForDrain(t, q)
}

func TestSubmitAllowsConcurrentDistinctDevices(t *testing.T) {
	q := newTestQueue(t, 4)

	op1, dev1 := usbOperation("op-x")
	op2, dev2 := usbOperation("op-y")

	require.NoError(t, q.Submit(context.Background(), op1, dev1))
	require.NoError(t, q.Submit(context.Background(), op2, dev2))

	waitForDrain(t, q)

	r1, ok := q.Result(op1.ID)
	require.True(t, ok)
	assert.Equal(t, wipe.StateCompleted, r1.State)

	r2, ok := q.Result(op2.ID)
	require.True(t, ok)
	assert.Equal(t, wipe.StateCompleted, r2.State)
}

func TestScheduleChainVerificationRejectsBadCron(t *testing.T) {
	q := newTestQueue(t, 1)
	err := q.ScheduleChainVerification("not a cron expression")
	assert.Error(t, err)
}

// waitForDrain polls until no device is owned, bounding the test
// against a stuck worker instead of hanging forever.
func waitForDrain(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(q.Active()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for queue to drain")
}
