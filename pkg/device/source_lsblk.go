// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coldforge/veriwipe/internal/command"
)

// lsblkOutput mirrors the subset of `lsblk -J` fields this source reads.
type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	Model      string `json:"model"`
	Serial     string `json:"serial"`
	Tran       string `json:"tran"`
	Rota       bool   `json:"rota"`
	Mountpoint string `json:"mountpoint"`
}

// lsblkSource supplies the baseline Facts: capacity, model, serial,
// transport and a first-pass rotational/media_class guess. Later sources
// in the ladder refine media_class when they have stronger evidence.
type lsblkSource struct {
	exec *command.Executor
}

func (s *lsblkSource) Name() string { return "lsblk" }

func (s *lsblkSource) Probe(ctx context.Context, devicePath string, facts *Facts) error {
	out, err := s.exec.Execute(ctx, "lsblk", "-J", "-b",
		"-o", "NAME,TYPE,SIZE,MODEL,SERIAL,TRAN,ROTA,MOUNTPOINT", devicePath)
	if err != nil {
		return fmt.Errorf("lsblk probe: %w", err)
	}
	facts.RawProbeBlobs["lsblk"] = string(out)

	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return fmt.Errorf("lsblk probe: parse output: %w", err)
	}
	if len(parsed.BlockDevices) == 0 {
		return fmt.Errorf("lsblk probe: no block device reported for %s", devicePath)
	}

	dev := parsed.BlockDevices[0]
	facts.Model = dev.Model
	facts.Serial = dev.Serial
	facts.CapacityBytes = dev.Size

	switch dev.Tran {
	case "nvme":
		facts.Transport = TransportNVMe
		facts.MediaClass = MediaSSDNVMe
	case "sata":
		facts.Transport = TransportSATA
		if dev.Rota {
			facts.MediaClass = MediaHDD
		} else {
			facts.MediaClass = MediaSSDSATA
		}
	case "usb":
		facts.Transport = TransportUSB
		facts.MediaClass = MediaUSB
	case "mmc":
		facts.Transport = TransportMMC
		facts.MediaClass = MediaEMMC
	}

	return nil
}

// enumerateBlockDevices lists every whole-disk block device on the host,
// used by Prober.ProbeAll to discover what to probe.
func enumerateBlockDevices(ctx context.Context, exec *command.Executor) ([]string, error) {
	out, err := exec.Execute(ctx, "lsblk", "-J", "-b", "-d",
		"-o", "NAME,TYPE")
	if err != nil {
		return nil, fmt.Errorf("enumerate block devices: %w", err)
	}

	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("enumerate block devices: parse output: %w", err)
	}

	paths := make([]string, 0, len(parsed.BlockDevices))
	for _, dev := range parsed.BlockDevices {
		if dev.Type != "disk" {
			continue
		}
		paths = append(paths, "/dev/"+dev.Name)
	}
	return paths, nil
}
