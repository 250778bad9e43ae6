// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"

	"github.com/coldforge/veriwipe/internal/command"
)

// luksSource detects a LUKS container on devicePath by invoking
// `cryptsetup isLuks`, which exits 0 when the device carries a valid
// LUKS header and non-zero otherwise. A non-zero exit is the expected,
// common case (plaintext device) and not reported as a probe failure.
type luksSource struct {
	exec *command.Executor
}

func (s *luksSource) Name() string { return "cryptsetup" }

func (s *luksSource) Probe(ctx context.Context, devicePath string, facts *Facts) error {
	out, err := s.exec.Execute(ctx, "cryptsetup", "isLuks", devicePath)
	if err != nil {
		facts.Encryption = EncryptionNone
		return nil
	}
	facts.RawProbeBlobs["cryptsetup_isluks"] = string(out)
	facts.Encryption = EncryptionLUKS

	if facts.SupportsSecureErase {
		return nil
	}
	// A LUKS container can always be sanitized by destroying its key
	// slots, independent of whatever the underlying media supports.
	facts.SupportsSecureErase = true
	return nil
}
