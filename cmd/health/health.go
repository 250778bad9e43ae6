// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldforge/veriwipe/config"
	"github.com/coldforge/veriwipe/pkg/health"
)

func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the running veriwipe daemon's health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			checker := health.NewChecker(cfg)
			ret, err := checker.CheckHealth()
			if err != nil {
				fmt.Println("Health check failed:", err)
				return nil
			}
			fmt.Println(ret)
			return nil
		},
	}
}
