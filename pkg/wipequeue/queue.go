// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package wipequeue is the concurrency and scheduling layer above
// pkg/wipe: one worker per device, semaphore-bounded across the whole
// host, plus an optional periodic job that re-verifies the hash chain
// while the queue is running.
package wipequeue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/stratastor/logger"

	"github.com/coldforge/veriwipe/pkg/device/raw"
	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
	"github.com/coldforge/veriwipe/pkg/logchain"
	"github.com/coldforge/veriwipe/pkg/wipe"
)

// Queue owns the set of in-flight wipe operations. A device is owned
// exclusively by one operation while its state is running or
// verifying; Submit refuses a second operation against an
// already-owned device.
type Queue struct {
	logger    logger.Logger
	executor  *wipe.Executor
	chain     *logchain.Chain
	scheduler gocron.Scheduler

	chainVerifyJobMu sync.Mutex
	chainVerifyJobID uuid.UUID
	chainVerifyJobSet bool

	mu      sync.RWMutex
	owners  map[string]*wipe.Operation          // device_id -> operation owning it
	results map[string]Result                   // operation_id -> final result, once known
	cancels map[string]context.CancelCauseFunc // operation_id -> cancel func, while running

	maxConcurrent int
	semaphore     chan struct{}
}

// Result is the outcome of one queued operation, recorded once its
// worker returns.
type Result struct {
	Operation *wipe.Operation
	State     wipe.State
	Err       error
}

// New builds a Queue bounding concurrent wipe workers to maxConcurrent.
func New(l logger.Logger, executor *wipe.Executor, chain *logchain.Chain, maxConcurrent int) (*Queue, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.QueueScheduleFailed).
			WithMetadata("operation", "create_scheduler")
	}

	return &Queue{
		logger:        l,
		executor:      executor,
		chain:         chain,
		scheduler:     scheduler,
		owners:        make(map[string]*wipe.Operation),
		results:       make(map[string]Result),
		cancels:       make(map[string]context.CancelCauseFunc),
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
	}, nil
}

// Submit starts op on its own worker goroutine against dev, after
// checking that no other operation already owns the device. It
// returns as soon as the worker is dispatched; the caller observes
// progress through the Executor's observer registry and reads the
// final Result via Result.
func (q *Queue) Submit(ctx context.Context, op *wipe.Operation, dev raw.BlockDevice) error {
	deviceID := op.DeviceFacts.DeviceID

	q.mu.Lock()
	if owner, busy := q.owners[deviceID]; busy {
		q.mu.Unlock()
		return vwerrors.New(vwerrors.QueueDeviceBusy, "device already owned by a running operation").
			WithMetadata("device_id", deviceID).
			WithMetadata("owning_operation", owner.ID)
	}

	select {
	case q.semaphore <- struct{}{}:
	default:
		q.mu.Unlock()
		return vwerrors.New(vwerrors.QueueConcurrencyLimit, "maximum concurrent wipe operations reached").
			WithMetadata("max_concurrent", fmt.Sprintf("%d", q.maxConcurrent))
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	q.owners[deviceID] = op
	q.cancels[op.ID] = cancel
	q.mu.Unlock()

	go q.run(runCtx, op, dev)

	q.logger.Info("wipe operation queued",
		"operation_id", op.ID,
		"device_id", deviceID,
		"strategy", string(op.Strategy))

	return nil
}

func (q *Queue) run(ctx context.Context, op *wipe.Operation, dev raw.BlockDevice) {
	deviceID := op.DeviceFacts.DeviceID

	defer func() {
		<-q.semaphore
		q.mu.Lock()
		delete(q.owners, deviceID)
		delete(q.cancels, op.ID)
		q.mu.Unlock()
	}()

	state, err := q.executor.Execute(ctx, op, dev)
	if err != nil {
		q.logger.Error("wipe operation worker returned an error",
			"operation_id", op.ID,
			"device_id", deviceID,
			"error", err)
	}

	q.mu.Lock()
	q.results[op.ID] = Result{Operation: op, State: state, Err: err}
	q.mu.Unlock()
}

// Result returns the recorded outcome of operationID, if its worker
// has finished.
func (q *Queue) Result(operationID string) (Result, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	r, ok := q.results[operationID]
	return r, ok
}

// Cancel requests that the running operation identified by operationID
// stop at its next observable point: between sub-steps of the current
// phase, or between passes of a multipass overwrite. If a sanitize
// command is already in flight, the device is in an uninterruptible
// state until that command returns; Execute only reaches StateCancelled
// once it does, with whatever partial progress was made recorded in
// the operation's log. Cancel does not block waiting for that to
// happen; callers observe the outcome via Result.
func (q *Queue) Cancel(operationID string) error {
	q.mu.Lock()
	cancel, ok := q.cancels[operationID]
	q.mu.Unlock()
	if !ok {
		return vwerrors.New(vwerrors.QueueNotFound, "operation not found in queue").
			WithMetadata("operation_id", operationID)
	}

	cancel(wipe.ErrCancelled)
	return nil
}

// IsOwned reports whether deviceID is currently owned by a running or
// verifying operation.
func (q *Queue) IsOwned(deviceID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, busy := q.owners[deviceID]
	return busy
}

// Active returns the operations currently running or verifying.
func (q *Queue) Active() []*wipe.Operation {
	q.mu.RLock()
	defer q.mu.RUnlock()
	ops := make([]*wipe.Operation, 0, len(q.owners))
	for _, op := range q.owners {
		ops = append(ops, op)
	}
	return ops
}

// ScheduleChainVerification registers a recurring job that re-verifies
// the hash chain's integrity on cronExpr, logging the outcome. This is
// the queue's only standing job: worker concurrency is bounded by the
// semaphore, and no periodic wipes are scheduled. Calling this
// again (the daemon's SIGHUP config-reload hook does) replaces the
// previously scheduled job rather than stacking a second one running
// alongside it.
func (q *Queue) ScheduleChainVerification(cronExpr string) error {
	q.chainVerifyJobMu.Lock()
	defer q.chainVerifyJobMu.Unlock()

	if q.chainVerifyJobSet {
		if err := q.scheduler.RemoveJob(q.chainVerifyJobID); err != nil {
			q.logger.Warn("failed to remove previous log chain verification job, scheduling anyway", "err", err)
		}
	}

	job, err := q.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(q.verifyChainJob),
		gocron.WithName("logchain-verify"),
	)
	if err != nil {
		return vwerrors.Wrap(err, vwerrors.QueueScheduleFailed).
			WithMetadata("cron", cronExpr)
	}

	q.chainVerifyJobID = job.ID()
	q.chainVerifyJobSet = true
	return nil
}

func (q *Queue) verifyChainJob() {
	if q.chain.VerifyChain() {
		q.logger.Debug("scheduled hash chain verification passed")
		return
	}
	q.logger.Error("scheduled hash chain verification failed",
		"load_error", q.chain.LoadError())
}

// Start starts the scheduler. Call once, before any Submit.
func (q *Queue) Start() {
	q.scheduler.Start()
	q.logger.Info("wipe queue started", "max_concurrent", q.maxConcurrent)
}

// Stop shuts the scheduler down and waits for active operations to
// drain, up to a bounded timeout, logging a warning rather than
// blocking indefinitely if they don't.
func (q *Queue) Stop(ctx context.Context) error {
	q.logger.Info("stopping wipe queue")

	if err := q.scheduler.Shutdown(); err != nil {
		q.logger.Error("error stopping scheduler", "error", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if len(q.Active()) == 0 {
			break
		}
		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			q.logger.Warn("context cancelled while waiting for wipe operations to drain",
				"active", len(q.Active()))
			return ctx.Err()
		}
	}

	if remaining := len(q.Active()); remaining > 0 {
		q.logger.Warn("wipe queue stopped with active operations", "active", remaining)
	} else {
		q.logger.Info("wipe queue stopped cleanly")
	}

	return nil
}
