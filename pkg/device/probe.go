// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"

	"github.com/stratastor/logger"

	"github.com/coldforge/veriwipe/internal/command"
)

// Source is one independent information source the Prober composes into a
// single Facts value. A source failing is not fatal to the probe: it
// yields a missing fact rather than aborting.
type Source interface {
	// Name identifies the source for logging and RawProbeBlobs keys.
	Name() string
	// Probe gathers whatever it can about devicePath into facts,
	// mutating it in place. Sources must not overwrite a field another
	// source already set unless they're more authoritative for that
	// field: media_class's priority ladder is resolved by composition
	// order, not by source precedence.
	Probe(ctx context.Context, devicePath string, facts *Facts) error
}

// Prober enumerates block devices and probes each with the configured
// source ladder.
type Prober struct {
	log     logger.Logger
	exec    *command.Executor
	sources []Source
}

// NewProber builds a Prober with the default source composition: block
// inventory, SMART/drive-identify, NVMe identify, LUKS header inspection,
// hidden-area inspection, in priority order so later sources can refine
// facts set by earlier ones on the media_class priority ladder.
func NewProber(log logger.Logger, exec *command.Executor) *Prober {
	return &Prober{
		log:  log,
		exec: exec,
		sources: []Source{
			&lsblkSource{exec: exec},
			&smartSource{exec: exec},
			&nvmeSource{exec: exec},
			&luksSource{exec: exec},
			&hpaSource{exec: exec},
		},
	}
}

// ProbeDevice runs every source against devicePath and returns the
// composed Facts. A source error is logged and skipped; the probe as a
// whole never returns an error, even when every source failed.
func (p *Prober) ProbeDevice(ctx context.Context, devicePath string) (*Facts, error) {
	facts := &Facts{
		DeviceID:      devicePath,
		MediaClass:    MediaUnknown,
		Transport:     TransportUnknown,
		Encryption:    EncryptionNone,
		RawProbeBlobs: make(map[string]string),
	}

	for _, src := range p.sources {
		if err := src.Probe(ctx, devicePath, facts); err != nil {
			p.log.Warn("probe source failed, continuing with remaining sources",
				"device", devicePath, "source", src.Name(), "err", err)
			continue
		}
	}

	return facts, nil
}

// ProbeAll enumerates every disk-class block device on the host (via the
// lsblk source) and probes each. Enumeration failure yields an empty list
// with a logged error rather than aborting the caller.
func (p *Prober) ProbeAll(ctx context.Context) []*Facts {
	paths, err := enumerateBlockDevices(ctx, p.exec)
	if err != nil {
		p.log.Error("device enumeration failed", "err", err)
		return nil
	}

	facts := make([]*Facts, 0, len(paths))
	for _, path := range paths {
		f, err := p.ProbeDevice(ctx, path)
		if err != nil {
			p.log.Warn("skipping device after probe error", "device", path, "err", err)
			continue
		}
		facts = append(facts, f)
	}
	return facts
}
