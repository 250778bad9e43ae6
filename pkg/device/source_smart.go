// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coldforge/veriwipe/internal/command"
)

// smartOutput mirrors the subset of `smartctl -j` fields this source
// reads. smartctl emits a partial document even when the device rejects
// some sub-page, so every field here is optional.
type smartOutput struct {
	Rotation struct {
		Name string `json:"name"`
	} `json:"rotation_rate"`
	Device struct {
		Protocol string `json:"protocol"`
	} `json:"device"`
	ModelName  string `json:"model_name"`
	SerialNum  string `json:"serial_number"`
	ATASecurity struct {
		Supported bool `json:"supported"`
		Enabled   bool `json:"enabled"`
	} `json:"ata_security"`
}

// smartSource refines media_class and supports_secure_erase using
// smartctl, which reports rotation rate and ATA Security feature-set
// support more reliably than lsblk's ROTA flag alone.
type smartSource struct {
	exec *command.Executor
}

func (s *smartSource) Name() string { return "smartctl" }

func (s *smartSource) Probe(ctx context.Context, devicePath string, facts *Facts) error {
	out, err := s.exec.Execute(ctx, "smartctl", "-j", "-a", devicePath)
	if err != nil {
		// smartctl exits non-zero on perfectly healthy drives when any
		// SMART sub-check is merely "not supported"; the output is
		// still usable, so only bail if it didn't produce JSON at all.
		if len(out) == 0 {
			return fmt.Errorf("smartctl probe: %w", err)
		}
	}
	facts.RawProbeBlobs["smartctl"] = string(out)

	var parsed smartOutput
	if jsonErr := json.Unmarshal(out, &parsed); jsonErr != nil {
		return fmt.Errorf("smartctl probe: parse output: %w", jsonErr)
	}

	if facts.Model == "" {
		facts.Model = parsed.ModelName
	}
	if facts.Serial == "" {
		facts.Serial = parsed.SerialNum
	}

	if strings.Contains(strings.ToLower(parsed.Device.Protocol), "nvme") {
		facts.Transport = TransportNVMe
		facts.MediaClass = MediaSSDNVMe
	} else if parsed.Rotation.Name == "Solid State Device" && facts.MediaClass != MediaSSDNVMe {
		facts.MediaClass = MediaSSDSATA
	} else if strings.HasSuffix(parsed.Rotation.Name, "rpm") && facts.MediaClass == MediaUnknown {
		facts.MediaClass = MediaHDD
	}

	if parsed.ATASecurity.Supported {
		facts.SupportsSecureErase = true
	}

	return nil
}
