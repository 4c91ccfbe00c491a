// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package command provides a hardened wrapper around os/exec for
// shelling out to the disk-utility binaries (smartctl, hdparm, nvme,
// lsblk, udevadm, blockdev) the engine drives. It never constructs a
// shell string: every invocation is an argv vector passed straight to
// exec.CommandContext.
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
	sanerrors "github.com/tinkershack/sanitor/pkg/errors"
)

// dangerousChars must never appear in a command name or argument;
// their presence means something is trying to break out of argv-based
// invocation (shell metacharacters, redirects, substitution).
const dangerousChars = "&|><$`\\[];{}"

const defaultTimeout = 30 * time.Second

// Executor runs external tools with a bounded timeout and optional
// sudo elevation (required for raw block-device access and ATA/NVMe
// pass-through).
type Executor struct {
	UseSudo bool
	Timeout time.Duration
	Env     []string
	logger  logger.Logger
}

// NewExecutor creates an Executor. useSudo should be true for any
// command that opens a raw block device or issues a pass-through
// ioctl; false for read-only version/capability probes.
func NewExecutor(l logger.Logger, useSudo bool) *Executor {
	return &Executor{
		UseSudo: useSudo,
		Timeout: defaultTimeout,
		logger:  l,
	}
}

// Run executes name with args and returns combined stdout+stderr.
func (e *Executor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := validate(name, args); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	argv := make([]string, 0, len(args)+2)
	bin := name
	if e.UseSudo {
		argv = append(argv, "sudo", name)
		bin = "sudo"
	} else {
		argv = append(argv, name)
	}
	argv = append(argv, args...)

	display := shellquote.Join(argv...)
	e.logger.Debug("executing command", "cmd", display)

	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Env = append([]string{}, e.Env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.logger.Error("command failed", "cmd", display, "exit_code", exitErr.ExitCode(), "output", out.String())
			return out.Bytes(), sanerrors.NewCommandError(display, exitErr.ExitCode(), out.String())
		}
		if ctx.Err() == context.DeadlineExceeded {
			return out.Bytes(), sanerrors.New(sanerrors.CommandTimeout, display)
		}
		return out.Bytes(), fmt.Errorf("command execution failed: %w: %s", err, out.String())
	}

	return out.Bytes(), nil
}

// DisplayCommand renders an argv vector as a shell-safe string, used
// for human-readable plan step descriptions and log lines.
func DisplayCommand(name string, args ...string) string {
	full := append([]string{name}, args...)
	return shellquote.Join(full...)
}

func validate(name string, args []string) error {
	if name == "" {
		return sanerrors.New(sanerrors.CommandInvalidInput, "empty command")
	}
	if !strings.HasPrefix(name, "/") && strings.ContainsAny(name, "/\\") {
		return sanerrors.New(sanerrors.CommandInvalidInput, "relative paths are not allowed for commands")
	}
	if strings.ContainsAny(name, dangerousChars) {
		return sanerrors.New(sanerrors.CommandInvalidInput, "command contains invalid characters")
	}
	for _, arg := range args {
		if strings.ContainsAny(arg, dangerousChars) {
			return sanerrors.New(sanerrors.CommandInvalidInput, "argument contains invalid characters")
		}
	}
	if len(args) > 64 {
		return sanerrors.New(sanerrors.CommandInvalidInput, "too many arguments")
	}
	return nil
}
