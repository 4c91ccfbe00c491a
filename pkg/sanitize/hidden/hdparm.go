// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package hidden implements the Hidden-Region Manager (C2): HPA
// detection/removal and DCO suspicion reporting.
package hidden

import (
	"context"
	"regexp"
	"strconv"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/internal/command"
	"github.com/tinkershack/sanitor/pkg/errors"
)

// hdparmN wraps `hdparm -N <device>` invocations: reading and setting
// the drive's native max address is the standard Linux userspace path
// for HPA inspection/removal (the ATA SET MAX ADDRESS[EXT] /
// READ NATIVE MAX ADDRESS[EXT] commands, per spec.md section 4.2).
type hdparmN struct {
	logger   logger.Logger
	executor *command.Executor
	path     string
}

func newHdparmN(l logger.Logger, cfg *config.Config) *hdparmN {
	return &hdparmN{
		logger:   l,
		executor: command.NewExecutor(l, true),
		path:     cfg.Tools.Hdparm,
	}
}

// maxAddressLine matches hdparm -N's report line, e.g.:
// "max sectors   = 234441648/234441648, HPA is enabled"
var maxAddressLine = regexp.MustCompile(`max sectors\s*=\s*(\d+)/(\d+)`)

// readMaxAddress returns (user_max_lba, native_max_lba).
func (h *hdparmN) readMaxAddress(ctx context.Context, device string) (int64, int64, error) {
	out, err := h.executor.Run(ctx, h.path, "-N", device)
	if err != nil {
		return 0, 0, errors.Wrap(err, errors.HiddenDetectFailed).WithMetadata("device", device)
	}

	m := maxAddressLine.FindSubmatch(out)
	if m == nil {
		return 0, 0, errors.New(errors.HiddenDetectFailed, "could not parse hdparm -N output").
			WithMetadata("device", device)
	}

	userMax, err1 := strconv.ParseInt(string(m[1]), 10, 64)
	nativeMax, err2 := strconv.ParseInt(string(m[2]), 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, errors.New(errors.HiddenDetectFailed, "could not parse max address values").
			WithMetadata("device", device)
	}
	return userMax, nativeMax, nil
}

// setMaxAddress issues `hdparm -N pNATIVE device` (SET MAX ADDRESS[EXT]).
func (h *hdparmN) setMaxAddress(ctx context.Context, device string, nativeMaxLBA int64) error {
	arg := "p" + strconv.FormatInt(nativeMaxLBA, 10)
	_, err := h.executor.Run(ctx, h.path, "--yes-i-know-what-i-am-doing", "-N", arg, device)
	if err != nil {
		return errors.Wrap(err, errors.HiddenRemovalFailed).WithMetadata("device", device)
	}
	return nil
}
