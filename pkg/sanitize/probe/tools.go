// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package probe implements the Device Probe (C1): block-device
// enumeration, identify-data parsing, and drive classification.
package probe

import (
	"context"
	"strings"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/internal/command"
	"github.com/tinkershack/sanitor/pkg/errors"
)

// Toolset resolves and shells out to the external utilities the
// prober depends on: smartctl for identify data, lsblk for block
// device enumeration.
type Toolset struct {
	logger   logger.Logger
	executor *command.Executor
	paths    struct {
		smartctl string
		lsblk    string
		nvme     string
	}
}

// NewToolset builds a Toolset from the engine configuration.
func NewToolset(l logger.Logger, cfg *config.Config) *Toolset {
	ts := &Toolset{
		logger:   l,
		executor: command.NewExecutor(l, true),
	}
	ts.paths.smartctl = cfg.Tools.Smartctl
	ts.paths.lsblk = cfg.Tools.Lsblk
	ts.paths.nvme = cfg.Tools.Nvme
	return ts
}

// ListBlockDevices returns device paths reported by lsblk.
func (t *Toolset) ListBlockDevices(ctx context.Context) ([]string, error) {
	out, err := t.executor.Run(ctx, t.paths.lsblk, "--noheadings", "--paths", "--list", "--output", "NAME,TYPE")
	if err != nil {
		return nil, errors.Wrap(err, errors.ProbeEnumerationFailed)
	}
	var devices []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if fields[1] != "disk" {
			continue
		}
		devices = append(devices, fields[0])
	}
	return devices, nil
}

// SmartctlAll returns the `smartctl --json --all <device>` output.
func (t *Toolset) SmartctlAll(ctx context.Context, device string) ([]byte, error) {
	out, err := t.executor.Run(ctx, t.paths.smartctl, "--json", "--all", device)
	if err != nil {
		// smartctl exits non-zero on SMART warnings even when the JSON
		// payload it printed is complete and parseable; only treat this
		// as fatal if nothing came back.
		if len(out) == 0 {
			return nil, errors.Wrap(err, errors.ProbeIdentifyFailed).WithMetadata("device", device)
		}
	}
	return out, nil
}

// NvmeIdentifyNamespace returns `nvme id-ns <device>` output for NVMe
// sanitize/namespace-size parsing.
func (t *Toolset) NvmeIdentifyNamespace(ctx context.Context, device string) ([]byte, error) {
	out, err := t.executor.Run(ctx, t.paths.nvme, "id-ns", device, "--output-format=json")
	if err != nil {
		return nil, errors.Wrap(err, errors.ProbeIdentifyFailed).WithMetadata("device", device)
	}
	return out, nil
}
