// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coldforge/veriwipe/internal/command"
)

// nvmeIdentify mirrors the subset of `nvme id-ctrl -o json` fields this
// source reads. oacs bit 1 indicates Format NVM support; bit 2 indicates
// Crypto Erase support via Format NVM with ses=2.
type nvmeIdentify struct {
	ModelNumber  string `json:"mn"`
	SerialNumber string `json:"sn"`
	OACS         int    `json:"oacs"`
}

// nvmeSource probes NVMe controllers for Format NVM / crypto-erase
// support. It's a no-op (returns nil without error) for non-NVMe
// devices, since `nvme id-ctrl` against a SATA disk fails harmlessly
// and shouldn't be logged as a probe failure.
type nvmeSource struct {
	exec *command.Executor
}

func (s *nvmeSource) Name() string { return "nvme" }

func (s *nvmeSource) Probe(ctx context.Context, devicePath string, facts *Facts) error {
	if facts.Transport != TransportNVMe && facts.MediaClass != MediaSSDNVMe {
		return nil
	}

	out, err := s.exec.Execute(ctx, "nvme", "id-ctrl", devicePath, "-o", "json")
	if err != nil {
		return fmt.Errorf("nvme id-ctrl probe: %w", err)
	}
	facts.RawProbeBlobs["nvme_id_ctrl"] = string(out)

	var parsed nvmeIdentify
	if err := json.Unmarshal(out, &parsed); err != nil {
		return fmt.Errorf("nvme id-ctrl probe: parse output: %w", err)
	}

	if facts.Model == "" {
		facts.Model = parsed.ModelNumber
	}
	if facts.Serial == "" {
		facts.Serial = parsed.SerialNumber
	}

	const (
		oacsFormatBit = 1 << 1
		oacsCryptoBit = 1 << 2
	)
	if parsed.OACS&oacsFormatBit != 0 || parsed.OACS&oacsCryptoBit != 0 {
		facts.SupportsSecureErase = true
	}

	return nil
}
