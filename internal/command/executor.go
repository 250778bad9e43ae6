// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package command runs the external vendor tools (hdparm, nvme, blkdiscard,
// cryptsetup, smartctl, lsblk) that the device probe and wipe executor
// shell out to, with the same command-injection guards the rest of this
// module's ambient stack uses for any external process invocation.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stratastor/logger"

	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

// Dangerous characters that could enable command injection
var dangerousChars = "&|><$`\\[];{}"

// defaultCommandTimeout covers most probe commands (lsblk, smartctl, nvme
// id-ctrl). Long-running sanitize operations must pass their own
// context with a deadline sized to the device's capacity.
const defaultCommandTimeout = 30 * time.Second

// ExecCommand executes a system command with proper security checks
func ExecCommand(
	ctx context.Context,
	log logger.Logger,
	name string,
	args ...string,
) ([]byte, error) {
	if err := validateCommand(name, args); err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
	}

	cmdString := shellquote.Join(append([]string{name}, args...)...)
	log.Debug("Executing command", "cmd", cmdString)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = []string{}

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Error("Command execution failed with exit code",
				"cmd", cmdString,
				"exit_code", exitErr.ExitCode(),
				"output", string(output))

			return output, vwerrors.Wrap(err, vwerrors.CommandExecution).
				WithMetadata("command", cmdString).
				WithMetadata("exit_code", fmt.Sprintf("%d", exitErr.ExitCode())).
				WithMetadata("output", string(output))
		}

		log.Error("Command execution failed",
			"cmd", cmdString,
			"err", err,
			"output", string(output))

		return output, fmt.Errorf("command execution failed: %w: %s", err, string(output))
	}

	return output, nil
}

// validateCommand performs security checks on the command and arguments
func validateCommand(name string, args []string) error {
	if name == "" {
		return vwerrors.New(vwerrors.CommandInvalidInput, "empty command")
	}

	if !strings.HasPrefix(name, "/") && strings.ContainsAny(name, "/\\") {
		return vwerrors.New(
			vwerrors.CommandInvalidInput,
			"relative paths are not allowed for commands",
		)
	}

	if strings.ContainsAny(name, dangerousChars) {
		return vwerrors.New(vwerrors.CommandInvalidInput, "command contains invalid characters")
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, dangerousChars) {
			return vwerrors.New(
				vwerrors.CommandInvalidInput,
				"argument contains invalid characters",
			)
		}

		if strings.Contains(arg, "..") {
			return vwerrors.New(vwerrors.CommandInvalidInput, "path traversal not allowed")
		}
	}

	if len(args) > 64 {
		return vwerrors.New(vwerrors.CommandInvalidInput, "too many arguments")
	}

	return nil
}

// Executor runs vendor sanitize and probe tools, optionally prefixed with
// sudo since most of hdparm/nvme/blkdiscard/cryptsetup require raw block
// device access.
type Executor struct {
	UseSudo bool
	Timeout time.Duration
	WorkDir string
	Env     []string
}

// NewExecutor creates a new command executor
func NewExecutor(useSudo bool) *Executor {
	return &Executor{
		UseSudo: useSudo,
		Timeout: defaultCommandTimeout,
	}
}

func (e *Executor) commandArgs(cmd string, args []string) []string {
	cmdArgs := make([]string, 0, len(args)+2)
	if e.UseSudo {
		cmdArgs = append(cmdArgs, "sudo", cmd)
	} else {
		cmdArgs = append(cmdArgs, cmd)
	}
	return append(cmdArgs, args...)
}

// Execute runs a command and returns stdout; stderr is captured separately
// and surfaced only in the error path.
func (e *Executor) Execute(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	if err := validateCommand(cmd, args); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmdArgs := e.commandArgs(cmd, args)
	execCmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	execCmd.Env = append(execCmd.Env, e.Env...)
	if e.WorkDir != "" {
		execCmd.Dir = e.WorkDir
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), vwerrors.NewCommandError(
				shellquote.Join(cmdArgs...),
				exitErr.ExitCode(),
				stderr.String(),
			)
		}
		return stdout.Bytes(), fmt.Errorf("command failed: %w: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// ExecuteWithCombinedOutput runs a command and returns combined stdout/stderr,
// used for tools (hdparm --security-erase, nvme format) whose progress or
// error detail is interleaved across both streams.
func (e *Executor) ExecuteWithCombinedOutput(
	ctx context.Context,
	cmd string,
	args ...string,
) ([]byte, error) {
	if err := validateCommand(cmd, args); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmdArgs := e.commandArgs(cmd, args)
	execCmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	execCmd.Env = append(execCmd.Env, e.Env...)
	if e.WorkDir != "" {
		execCmd.Dir = e.WorkDir
	}

	var combined bytes.Buffer
	execCmd.Stdout = &combined
	execCmd.Stderr = &combined

	if err := execCmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return combined.Bytes(), vwerrors.NewCommandError(
				shellquote.Join(cmdArgs...),
				exitErr.ExitCode(),
				combined.String(),
			)
		}
		return combined.Bytes(), fmt.Errorf("command failed: %w: %s", err, combined.String())
	}

	return combined.Bytes(), nil
}
