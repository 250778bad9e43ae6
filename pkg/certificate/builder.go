// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/coldforge/veriwipe/pkg/logchain"
	"github.com/coldforge/veriwipe/pkg/signer"
	"github.com/coldforge/veriwipe/pkg/wipe"
	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

// Builder assembles and signs certificates from a completed (or
// terminally failed) WipeOperation and the log chain it produced.
type Builder struct {
	signer            *signer.Signer
	standards         []string
	classificationMap map[string]string
	productName       string
	version           string
	buildID           string
}

// NewBuilder constructs a Builder. classificationMap maps a strategy
// name to its NIST SP 800-88 classification (Clear|Purge), loaded from
// configuration so operators can adjust it without a code change.
func NewBuilder(s *signer.Signer, standards []string, classificationMap map[string]string, productName, version, buildID string) *Builder {
	return &Builder{
		signer:            s,
		standards:         standards,
		classificationMap: classificationMap,
		productName:       productName,
		version:           version,
		buildID:           buildID,
	}
}

// Build snapshots redacted device facts, derives summaries, copies the
// log projection verbatim, attaches tool info, canonicalizes and signs.
// operator is optional free-text attribution carried verbatim onto the
// certificate.
func (b *Builder) Build(op *wipe.Operation, entries []logchain.Entry, operator string) (*Certificate, error) {
	if op.State != wipe.StateCompleted && op.State != wipe.StateFailed {
		return nil, vwerrors.New(vwerrors.CertificateBuildFailed,
			"certificate can only be built for a completed or failed operation").
			WithMetadata("operation_id", op.ID).
			WithMetadata("state", string(op.State))
	}

	cert := &Certificate{
		CertificateID:       uuid.NewString(),
		IssuedAt:            time.Now().UTC(),
		DeviceSummary:       b.deviceSummary(op),
		OperationSummary:    b.operationSummary(op),
		VerificationSummary: b.verificationSummary(op),
		LogProjection:       projectLog(entries),
		ToolInfo: ToolInfo{
			Product:           b.productName,
			Version:           b.version,
			BuildID:           b.buildID,
			SignerFingerprint: b.signer.Fingerprint(),
		},
		Compliance: Compliance{
			Standards:         b.standards,
			Classification:    b.classificationMap[string(op.Strategy)],
			VerificationLevel: verificationLevel(op),
		},
		Operator: operator,
	}

	canonical, err := canonicalize(cert)
	if err != nil {
		return nil, err
	}

	sig, err := b.signer.Sign(canonical)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.CertificateBuildFailed)
	}
	cert.Signature = sig

	return cert, nil
}

func (b *Builder) deviceSummary(op *wipe.Operation) DeviceSummary {
	facts := op.DeviceFacts
	return DeviceSummary{
		Model:               facts.Model,
		MediaClass:          string(facts.MediaClass),
		CapacityBytes:       facts.CapacityBytes,
		Transport:           string(facts.Transport),
		Encryption:          string(facts.Encryption),
		HiddenAreaPresent:   facts.HiddenAreaPresent,
		SupportsSecureErase: facts.SupportsSecureErase,
		DevicePathHash:      shortHash(facts.DeviceID),
		SerialHash:          shortHash(facts.Serial),
	}
}

func (b *Builder) operationSummary(op *wipe.Operation) OperationSummary {
	summary := OperationSummary{
		Strategy:     string(op.Strategy),
		State:        string(op.State),
		StartedAt:    op.StartedAt,
		EndedAt:      op.EndedAt,
		FallbackUsed: op.FallbackUsed(),
		Warnings:     op.Warnings,
	}
	if op.EndedAt != nil {
		summary.DurationMS = op.EndedAt.Sub(op.StartedAt).Milliseconds()
	}
	if op.Error != nil {
		summary.Error = op.Error.Message
	}
	return summary
}

func (b *Builder) verificationSummary(op *wipe.Operation) VerificationSummary {
	return VerificationSummary{
		PreSampleHash:       op.VerificationSamples.PreSampleHash,
		PostSampleHash:      op.VerificationSamples.PostSampleHash,
		SampledSectorChecks: op.VerificationSamples.SampledSectorChecks,
		FailedSectorChecks:  op.VerificationSamples.FailedSectorChecks,
		NISTClassification:  b.classificationMap[string(op.Strategy)],
	}
}

func verificationLevel(op *wipe.Operation) string {
	if op.State == wipe.StateCompleted && op.VerificationSamples.FailedSectorChecks == 0 {
		return "sampled"
	}
	return "none"
}

func projectLog(entries []logchain.Entry) []LogEntryProjection {
	out := make([]LogEntryProjection, len(entries))
	for i, e := range entries {
		out[i] = LogEntryProjection{
			Sequence:  e.Sequence,
			Timestamp: e.Timestamp,
			EntryID:   e.EntryID,
			Level:     string(e.Level),
			Message:   e.Message,
			PrevHash:  e.PrevHash,
			EntryHash: e.EntryHash,
		}
	}
	return out
}

func shortHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}
