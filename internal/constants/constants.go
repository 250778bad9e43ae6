// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package constants

const (
	Version        = "v0.1.0"
	ToolName       = "veriwipe"
	PIDFilePath    = "/var/run/veriwipe.pid"

	SystemConfigDir = "/etc/veriwipe"
	UserConfigDir   = "~/.veriwipe"
	ConfigFileName  = "veriwipe.yml"
	StateFileName   = "veriwipe_state.json"
)
