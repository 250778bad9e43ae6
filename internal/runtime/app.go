// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package runtime wires the core device/wipe/evidence pipeline from
// configuration. It is the one place that assembly happens, so the
// guided CLI flow and the "serve" daemon build on identical wiring.
package runtime

import (
	"fmt"

	"github.com/stratastor/logger"

	"github.com/coldforge/veriwipe/config"
	"github.com/coldforge/veriwipe/internal/command"
	"github.com/coldforge/veriwipe/internal/constants"
	"github.com/coldforge/veriwipe/pkg/certificate"
	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/logchain"
	"github.com/coldforge/veriwipe/pkg/signer"
	"github.com/coldforge/veriwipe/pkg/wipe"
	"github.com/coldforge/veriwipe/pkg/wipequeue"
)

// App bundles the core subsystems every entry point needs.
type App struct {
	Cfg      *config.Config
	Log      logger.Logger
	Prober   *device.Prober
	Signer   *signer.Signer
	Chain    *logchain.Chain
	Executor *wipe.Executor
	Queue    *wipequeue.Queue
	Builder  *certificate.Builder
	Verifier *certificate.Verifier
}

// New wires every core subsystem from cfg.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.NewTag(config.NewLoggerConfig(cfg), "veriwipe")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	exec := command.NewExecutor(true)
	prober := device.NewProber(log, exec)

	s, err := signer.New(log, cfg.Signer.KeysDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load signer keypair: %w", err)
	}

	chain, err := logchain.Open(log, cfg.LogChain.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash-chained log: %w", err)
	}

	executor := wipe.NewExecutor(log, exec, chain)

	queue, err := wipequeue.New(log, executor, chain, cfg.Queue.MaxConcurrentWipes)
	if err != nil {
		return nil, fmt.Errorf("failed to build wipe queue: %w", err)
	}

	builder := certificate.NewBuilder(s, cfg.Compliance.Standards, cfg.Compliance.ClassificationMap,
		constants.ToolName, constants.Version, constants.Version)

	trust, err := buildTrustStore(cfg, s)
	if err != nil {
		return nil, fmt.Errorf("failed to build trust store: %w", err)
	}
	verifier := certificate.NewVerifier(trust)

	return &App{
		Cfg:      cfg,
		Log:      log,
		Prober:   prober,
		Signer:   s,
		Chain:    chain,
		Executor: executor,
		Queue:    queue,
		Builder:  builder,
		Verifier: verifier,
	}, nil
}

// buildTrustStore resolves a fleet trust directory when configured,
// falling back to trusting only this host's own signer (the common
// case: a device verifies the certificate it just emitted).
func buildTrustStore(cfg *config.Config, s *signer.Signer) (certificate.TrustStore, error) {
	if cfg.Signer.TrustDir != "" {
		return certificate.NewDirTrustStore(cfg.Signer.TrustDir)
	}
	return certificate.NewSingleKeyTrustStore(s.Fingerprint(), s.PublicKey()), nil
}
