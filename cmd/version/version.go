// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldforge/veriwipe/internal/constants"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show veriwipe's version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", constants.ToolName, constants.Version)
		},
	}
}
