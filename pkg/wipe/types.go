// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package wipe is the sanitize execution engine: it runs a WipeOperation
// through its pre-flight, sanitize, verification and recording phases
// and drives the operation's forward-only state machine.
package wipe

import (
	"time"

	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/selector"
)

// State is the lifecycle state of a WipeOperation. Transitions only
// ever move forward: pending→running→verifying→completed, with
// running→running permitted exactly once for a fallback retry, and any
// non-terminal state may move to failed or cancelled.
type State string

const (
	StatePending    State = "pending"
	StateRunning    State = "running"
	StateVerifying  State = "verifying"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// OperationError is the structured error recorded on a WipeOperation
// when it ends in StateFailed.
type OperationError struct {
	Kind    selector.ErrorKind `json:"kind"`
	Message string             `json:"message"`
}

// VerificationSamples records the pre/post integrity check performed in
// Phase P3.
type VerificationSamples struct {
	PreSampleHash       string `json:"pre_sample_hash"`
	PostSampleHash      string `json:"post_sample_hash"`
	SampledSectorChecks int    `json:"sampled_sector_checks"`
	FailedSectorChecks  int    `json:"failed_sector_checks"`
}

// Operation is the lifecycle record for one sanitize run against one
// device. It owns its verification samples and event refs for its
// lifetime.
type Operation struct {
	ID                   string               `json:"id"`
	DeviceFacts          *device.Facts        `json:"device_facts"`
	Strategy             selector.Strategy    `json:"strategy"`
	StartedAt            time.Time            `json:"started_at"`
	EndedAt              *time.Time           `json:"ended_at,omitempty"`
	State                State                `json:"state"`
	Progress             float64              `json:"progress"`
	Error                *OperationError      `json:"error,omitempty"`
	VerificationSamples  VerificationSamples  `json:"verification_samples"`
	EventRefs            []string             `json:"event_refs"`

	// BytesProcessed/TotalBytes let a progress callback report
	// throughput for byte-counted strategies (single-pass and
	// multipass overwrite), not just a bare fraction.
	BytesProcessed int64 `json:"bytes_processed"`
	TotalBytes     int64 `json:"total_bytes"`

	// Warnings is a flat, human-skimmable list of non-fatal problems
	// encountered during the run (hidden-area restore failure, tool
	// quirks), distinct from the terminal Error.
	Warnings []string `json:"warnings,omitempty"`

	fallbackUsed bool
}

// NewOperation creates a pending operation for facts with its initial
// strategy already chosen by the selector.
func NewOperation(id string, facts *device.Facts) *Operation {
	return &Operation{
		ID:          id,
		DeviceFacts: facts,
		Strategy:    selector.Select(facts),
		State:       StatePending,
		EventRefs:   make([]string, 0),
		TotalBytes:  facts.CapacityBytes,
	}
}

// RecordWarning appends a human-readable warning to the operation's
// flat warnings list, independent of its hash-chained log entry.
func (op *Operation) RecordWarning(message string) {
	op.Warnings = append(op.Warnings, message)
}

// RecordEvent appends entryID to the operation's event refs in append
// order, mirroring the hash chain's own append order.
func (op *Operation) RecordEvent(entryID string) {
	op.EventRefs = append(op.EventRefs, entryID)
}

// IsTerminal reports whether state admits no further transition.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// FallbackUsed reports whether the executor already spent this
// operation's single permitted fallback retry.
func (op *Operation) FallbackUsed() bool {
	return op.fallbackUsed
}
