// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/coldforge/veriwipe/pkg/signer"
)

// TrustStore resolves a signer public-key fingerprint to the public
// key a Verifier should check a certificate's signature against.
type TrustStore interface {
	Lookup(fingerprint string) (*ecdsa.PublicKey, bool)
}

// Verifier offline-verifies certificate bytes. Neither Verifier nor
// Builder performs any network call.
type Verifier struct {
	trust TrustStore
}

// NewVerifier builds a Verifier checking signatures against keys
// resolved from trust.
func NewVerifier(trust TrustStore) *Verifier {
	return &Verifier{trust: trust}
}

// Verify parses, structurally validates, re-canonicalizes, and checks
// the signature against the bundled fingerprint's public key.
func (v *Verifier) Verify(data []byte) VerifyResult {
	var cert Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return VerifyResult{Errors: []string{fmt.Sprintf("malformed certificate JSON: %v", err)}}
	}

	result := VerifyResult{}
	structErrs := validateStructure(&cert)
	result.StructureValid = len(structErrs) == 0
	result.Errors = append(result.Errors, structErrs...)

	canonical, err := canonicalize(&cert)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to canonicalize certificate: %v", err))
		return result
	}

	pubKey, ok := v.trust.Lookup(cert.ToolInfo.SignerFingerprint)
	if !ok {
		result.Errors = append(result.Errors,
			fmt.Sprintf("no trusted public key for signer fingerprint %s", cert.ToolInfo.SignerFingerprint))
		return result
	}

	valid, err := signer.Verify(pubKey, canonical, cert.Signature)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("signature check failed: %v", err))
		return result
	}
	result.SignatureValid = valid
	if !valid {
		result.Errors = append(result.Errors, "signature does not match certificate contents")
	}

	redacted := cert
	redacted.Signature = ""
	result.Redacted = &redacted

	return result
}

func validateStructure(cert *Certificate) []string {
	var errs []string

	if cert.CertificateID == "" {
		errs = append(errs, "missing certificate_id")
	}
	if cert.IssuedAt.IsZero() {
		errs = append(errs, "missing or unparseable issued_at")
	}
	if cert.OperationSummary.State != "completed" && cert.OperationSummary.State != "failed" {
		errs = append(errs, fmt.Sprintf("operation_summary.state must be completed or failed, got %q", cert.OperationSummary.State))
	}
	if cert.DeviceSummary.MediaClass == "" {
		errs = append(errs, "device_summary missing media_class")
	}
	if cert.Signature == "" {
		errs = append(errs, "missing signature")
	}
	if cert.ToolInfo.SignerFingerprint == "" {
		errs = append(errs, "missing tool_info.signer_fingerprint")
	}

	return errs
}
