// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"context"
	"fmt"
	"os"

	"github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	"github.com/coldforge/veriwipe/config"
	"github.com/coldforge/veriwipe/internal/api"
	"github.com/coldforge/veriwipe/internal/constants"
	"github.com/coldforge/veriwipe/internal/runtime"
	"github.com/coldforge/veriwipe/pkg/lifecycle"
)

var detached bool

// NewServeCmd builds the optional daemon mode: it owns the local API
// surface the web verifier front-end talks to and the standing
// hash-chain re-verification job, running until a shutdown signal.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the veriwipe daemon (local API + periodic log verification)",
		Run:   runServe,
	}

	cmd.Flags().BoolVarP(&detached, "detach", "d", false, "run as a background daemon")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.GetConfig()

	if err := lifecycle.EnsureSingleInstance(constants.PIDFilePath); err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}

	if detached {
		dctx := &daemon.Context{
			PidFileName: constants.PIDFilePath,
			PidFilePerm: 0644,
			LogFileName: cfg.Logs.Path,
			LogFilePerm: 0640,
			WorkDir:     "/",
			Umask:       027,
			Args:        []string{constants.ToolName, "serve"},
		}

		d, err := dctx.Reborn()
		if err != nil {
			fmt.Printf("Failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if d != nil {
			fmt.Println("veriwipe daemon is running in the background")
			return
		}
		defer dctx.Release()
	}

	start(cfg)
}

func start(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := runtime.New(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := app.Queue.ScheduleChainVerification(cfg.Queue.ChainVerifyCron); err != nil {
		fmt.Printf("Failed to schedule log verification: %v\n", err)
		os.Exit(1)
	}
	app.Queue.Start()

	handler := api.NewHandler(app.Log, app.Prober, app.Verifier, app.Signer.Fingerprint())
	server := api.NewServer(app.Log, cfg.Server.APIAddr, handler, cfg.Server.LogLevel)

	lifecycle.RegisterContextCanceller(cancel)
	lifecycle.RegisterShutdownHook(func() {
		fmt.Println("Shutting down veriwipe daemon")
		if err := server.Shutdown(context.Background()); err != nil {
			fmt.Printf("Error during server shutdown: %v\n", err)
		}
		if err := app.Queue.Stop(context.Background()); err != nil {
			fmt.Printf("Error draining wipe queue: %v\n", err)
		}
	})
	lifecycle.RegisterReloadHook(func() {
		fresh, err := config.ReloadConfig()
		if err != nil {
			fmt.Printf("Failed to reload config, keeping existing settings: %v\n", err)
			return
		}
		if err := app.Queue.ScheduleChainVerification(fresh.Queue.ChainVerifyCron); err != nil {
			fmt.Printf("Failed to reschedule log chain verification: %v\n", err)
			return
		}
		fmt.Printf("reloaded log chain verification schedule: %s\n", fresh.Queue.ChainVerifyCron)
	})

	go lifecycle.HandleSignals(ctx)

	fmt.Printf("veriwipe daemon listening on %s\n", cfg.Server.APIAddr)
	if err := server.Start(ctx); err != nil {
		fmt.Printf("Server error: %v\n", err)
	}
}
