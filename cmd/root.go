// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coldforge/veriwipe/cmd/config"
	"github.com/coldforge/veriwipe/cmd/health"
	"github.com/coldforge/veriwipe/cmd/logs"
	"github.com/coldforge/veriwipe/cmd/serve"
	"github.com/coldforge/veriwipe/cmd/status"
	"github.com/coldforge/veriwipe/cmd/version"
	rootconfig "github.com/coldforge/veriwipe/config"
	"github.com/coldforge/veriwipe/internal/constants"
	"github.com/coldforge/veriwipe/internal/runtime"
	"github.com/coldforge/veriwipe/pkg/device"
	"github.com/coldforge/veriwipe/pkg/device/raw"
	"github.com/coldforge/veriwipe/pkg/selector"
	"github.com/coldforge/veriwipe/pkg/wipe"
)

var (
	probeFlag  bool
	verifyPath string
	infoFlag   bool
	logLevel   string
	operator   string
	assumeYes  bool
	configPath string
)

// NewRootCmd builds the full veriwipe command tree: the external
// interface table (--probe, --verify, --info, --log-level, default
// guided wipe) plus the subcommand tree (serve, version, health,
// status, logs, config).
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "veriwipe",
		Short: "veriwipe: tamper-evident block device sanitizer",
		RunE:  runRoot,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().BoolVar(&probeFlag, "probe", false, "enumerate devices and print the selected strategy per device")
	rootCmd.Flags().StringVar(&verifyPath, "verify", "", "offline-verify a certificate file at the given path")
	rootCmd.Flags().BoolVar(&infoFlag, "info", false, "dump host capability summary")
	rootCmd.Flags().StringVar(&operator, "operator", "", "free-text attribution recorded on the certificate")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the interactive confirmation prompt")

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(health.NewHealthCmd())
	rootCmd.AddCommand(status.NewStatusCmd())
	rootCmd.AddCommand(logs.NewLogsCmd())
	rootCmd.AddCommand(config.NewConfigCmd())

	return rootCmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg := rootconfig.LoadConfig(configPath)
	cfg.Server.LogLevel = logLevel
	if cmd.Flags().Changed("log-level") {
		cfg.Logger.LogLevel = logLevel
	}

	switch {
	case verifyPath != "":
		return runVerify(cfg, verifyPath)
	case probeFlag:
		return runProbe(cfg)
	case infoFlag:
		return runInfo(cfg)
	default:
		return runGuidedWipe(cfg)
	}
}

func runVerify(cfg *rootconfig.Config, path string) error {
	a, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	result := a.Verifier.Verify(data)
	valid := result.StructureValid && result.SignatureValid

	if valid {
		fmt.Println("VALID: certificate structure and signature check out")
	} else {
		fmt.Println("INVALID:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if !valid {
		os.Exit(1)
	}
	return nil
}

func runProbe(cfg *rootconfig.Config) error {
	a, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	facts := a.Prober.ProbeAll(context.Background())
	if len(facts) == 0 {
		fmt.Println("No block devices found.")
		return nil
	}

	for _, f := range facts {
		strategy := selector.Select(f)
		fmt.Printf("%s\tmedia=%s\ttransport=%s\tcapacity=%d\tstrategy=%s\n",
			f.DeviceID, f.MediaClass, f.Transport, f.CapacityBytes, strategy)
	}
	return nil
}

func runInfo(cfg *rootconfig.Config) error {
	a, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", constants.ToolName, constants.Version)
	fmt.Printf("signer fingerprint: %s\n", a.Signer.Fingerprint())
	fmt.Printf("keys dir:           %s\n", cfg.Signer.KeysDir)
	fmt.Printf("log chain:          %s\n", cfg.LogChain.Path)
	fmt.Printf("certificates dir:   %s\n", cfg.Certificates.Dir)
	fmt.Printf("compliance:         %s\n", strings.Join(cfg.Compliance.Standards, ", "))
	return nil
}

// runGuidedWipe is the thin CLI's stand-in for the out-of-scope
// interactive shell client: it probes devices, prompts for a target and
// a confirmation, then drives one wipe operation through to a signed
// certificate.
func runGuidedWipe(cfg *rootconfig.Config) error {
	a, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	facts := a.Prober.ProbeAll(ctx)
	if len(facts) == 0 {
		fmt.Println("No block devices found.")
		return nil
	}

	fmt.Println("Discovered devices:")
	for i, f := range facts {
		fmt.Printf("  [%d] %s  model=%s  media=%s  capacity=%d  strategy=%s\n",
			i, f.DeviceID, f.Model, f.MediaClass, f.CapacityBytes, selector.Select(f))
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Select a device to wipe by index (blank to cancel): ")
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		fmt.Println("Cancelled.")
		return nil
	}

	idx, err := strconv.Atoi(line)
	if err != nil || idx < 0 || idx >= len(facts) {
		return fmt.Errorf("invalid device index %q", line)
	}
	target := facts[idx]

	if !assumeYes {
		fmt.Printf("This will irrecoverably erase %s (%s, %d bytes). Type \"yes\" to proceed: ",
			target.DeviceID, target.Model, target.CapacityBytes)
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	return executeAndCertify(ctx, a, target)
}

func executeAndCertify(ctx context.Context, a *runtime.App, facts *device.Facts) error {
	dev, err := raw.Open(facts.DeviceID, facts.CapacityBytes)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", facts.DeviceID, err)
	}

	op := wipe.NewOperation(uuid.New().String(), facts)

	startIdx := len(a.Chain.Entries())

	a.Log.Info("starting wipe operation", "operation_id", op.ID, "device", facts.DeviceID, "strategy", op.Strategy)
	if _, err := a.Executor.Execute(ctx, op, dev); err != nil {
		a.Log.Error("wipe operation ended with error", "operation_id", op.ID, "err", err)
	}

	entries := a.Chain.Entries()
	if startIdx > len(entries) {
		startIdx = 0
	}
	projection := entries[startIdx:]

	cert, err := a.Builder.Build(op, projection, operator)
	if err != nil {
		return fmt.Errorf("failed to build certificate: %w", err)
	}

	data, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal certificate: %w", err)
	}

	outPath := filepath.Join(a.Cfg.Certificates.Dir, cert.CertificateID+".json")
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	fmt.Printf("Operation %s finished: %s\n", op.ID, op.State)
	fmt.Printf("Certificate written to %s\n", outPath)

	if op.State != wipe.StateCompleted {
		os.Exit(1)
	}
	return nil
}
