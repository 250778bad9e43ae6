// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coldforge/veriwipe/internal/constants"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the veriwipe daemon is running",
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := os.Stat(constants.PIDFilePath); err == nil {
				fmt.Println("veriwipe daemon is running")
			} else {
				fmt.Println("veriwipe daemon is not running")
			}
		},
	}
}
