// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package hwsanitize implements the Hardware Sanitize Driver (C5):
// ATA SECURE ERASE, NVMe SANITIZE, and cryptographic erase issued via
// the platform's pass-through command-line tools.
package hwsanitize

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/internal/command"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// Driver issues privileged device-sanitize commands. Every entry point
// is gated by allowReal: when false (the default), no command is
// shelled out and the call returns simulated=true, per spec.md
// section 4.5's "process-wide configuration flag" guard.
type Driver struct {
	logger   logger.Logger
	executor *command.Executor
	paths    struct {
		hdparm string
		nvme   string
	}
	pollInterval time.Duration
	deadline     time.Duration
}

// NewDriver builds a Driver from the engine configuration.
func NewDriver(l logger.Logger, cfg *config.Config) *Driver {
	d := &Driver{
		logger:       l,
		executor:     command.NewExecutor(l, true),
		pollInterval: types.DefaultSanitizePollInterval,
		deadline:     types.DefaultSanitizeDeadline,
	}
	d.paths.hdparm = cfg.Tools.Hdparm
	d.paths.nvme = cfg.Tools.Nvme

	if interval, err := time.ParseDuration(cfg.Sanitize.HardwarePollInterval); err == nil && interval > 0 {
		d.pollInterval = interval
	}
	return d
}

// Execute dispatches method against facts.DevicePath and reports
// whether the operation actually touched the device (simulated=false)
// or was a no-op stand-in (simulated=true, when allowReal is false).
func (d *Driver) Execute(ctx context.Context, facts types.DriveFacts, method types.Method, allowReal bool) (simulated bool, err error) {
	switch method.Kind {
	case types.MethodAtaSecureErase:
		return d.ataSecureErase(ctx, facts, method.Enhanced, allowReal)
	case types.MethodNvmeSanitize:
		return d.nvmeSanitize(ctx, facts, method.NvmeMode, allowReal)
	case types.MethodCryptoErase:
		return d.cryptoErase(ctx, facts, allowReal)
	default:
		return false, errors.New(errors.HardwareUnsupported, "method is not a hardware sanitize primitive").
			WithMetadata("method", method.String())
	}
}

func (d *Driver) ataSecureErase(ctx context.Context, facts types.DriveFacts, enhanced, allowReal bool) (bool, error) {
	cap := types.CapAtaSecureErase
	if enhanced {
		cap = types.CapAtaEnhancedSecureErase
	}
	if !facts.Capabilities.Has(cap) {
		return false, errors.New(errors.HardwareUnsupported, "drive does not report the requested ATA secure-erase capability").
			WithMetadata("device", facts.DevicePath)
	}
	if facts.HiddenRegion.SecurityFrozen {
		return false, errors.New(errors.HardwareSecurityFrozen, "ATA security is frozen; power-cycle required").
			WithMetadata("device", facts.DevicePath)
	}
	if !allowReal {
		d.logger.Info("simulating ATA secure erase", "device", facts.DevicePath, "enhanced", enhanced)
		return true, nil
	}

	const userPassword = "sanitor-temp"
	if _, err := d.executor.Run(ctx, d.paths.hdparm, "--user-master", "u",
		"--security-set-pass", userPassword, facts.DevicePath); err != nil {
		return false, errors.Wrap(err, errors.HardwareCommandFailed).WithMetadata("device", facts.DevicePath)
	}

	eraseFlag := "--security-erase"
	if enhanced {
		eraseFlag = "--security-erase-enhanced"
	}
	_, runErr := d.executor.Run(ctx, d.paths.hdparm, "--user-master", "u", eraseFlag, userPassword, facts.DevicePath)

	// Always attempt to clear the password, even if erase failed, so a
	// failed run doesn't leave the drive locked.
	if _, clearErr := d.executor.Run(ctx, d.paths.hdparm, "--user-master", "u",
		"--security-disable", userPassword, facts.DevicePath); clearErr != nil {
		d.logger.Warn("failed to clear temporary security password after erase", "device", facts.DevicePath, "err", clearErr)
	}

	if runErr != nil {
		return false, errors.Wrap(runErr, errors.HardwareCommandFailed).WithMetadata("device", facts.DevicePath)
	}
	return false, nil
}

func (d *Driver) nvmeSanitize(ctx context.Context, facts types.DriveFacts, mode types.NvmeSanitizeMode, allowReal bool) (bool, error) {
	cap, sanact := nvmeModeParams(mode)
	if cap == "" {
		return false, errors.New(errors.HardwareUnsupported, "unrecognized NVMe sanitize mode").
			WithMetadata("mode", string(mode))
	}
	if !facts.Capabilities.Has(cap) {
		return false, errors.New(errors.HardwareUnsupported, "drive does not report the requested NVMe sanitize capability").
			WithMetadata("device", facts.DevicePath)
	}
	if !allowReal {
		d.logger.Info("simulating NVMe sanitize", "device", facts.DevicePath, "mode", mode)
		return true, nil
	}

	if _, err := d.executor.Run(ctx, d.paths.nvme, "sanitize", facts.DevicePath, "--sanact="+sanact); err != nil {
		return false, errors.Wrap(err, errors.HardwareCommandFailed).WithMetadata("device", facts.DevicePath)
	}

	if err := d.pollSanitizeStatus(ctx, facts.DevicePath); err != nil {
		return false, err
	}
	return false, nil
}

func (d *Driver) cryptoErase(ctx context.Context, facts types.DriveFacts, allowReal bool) (bool, error) {
	if !facts.Capabilities.Has(types.CapCryptoErase) {
		return false, errors.New(errors.HardwareUnsupported, "drive does not report a crypto-erase capability").
			WithMetadata("device", facts.DevicePath)
	}
	if !allowReal {
		d.logger.Info("simulating crypto erase", "device", facts.DevicePath)
		return true, nil
	}

	if facts.Interface == types.InterfaceNVMe || facts.Kind == types.KindNVMe {
		// ses=2 selects crypto-erase in the NVMe Format NVM command's
		// Secure Erase Settings field: the standard, vendor-neutral
		// path for rotating a self-encrypting NVMe drive's DEK.
		if _, err := d.executor.Run(ctx, d.paths.nvme, "format", facts.DevicePath, "--ses=2"); err != nil {
			return false, errors.Wrap(err, errors.HardwareCommandFailed).WithMetadata("device", facts.DevicePath)
		}
		return false, nil
	}

	return false, errors.New(errors.HardwareUnsupported, "crypto erase is only implemented for NVMe self-encrypting drives").
		WithMetadata("device", facts.DevicePath)
}

func nvmeModeParams(mode types.NvmeSanitizeMode) (types.Capability, string) {
	switch mode {
	case types.NvmeSanitizeModeBlock:
		return types.CapNvmeSanitizeBlock, "2"
	case types.NvmeSanitizeModeCrypto:
		return types.CapNvmeSanitizeCrypto, "4"
	case types.NvmeSanitizeModeOverwrite:
		return types.CapNvmeSanitizeOverwrite, "3"
	default:
		return "", ""
	}
}

// sanitizeLogStatus matches the "SSTAT" (sanitize status) field in
// `nvme sanitize-log`'s human-readable output.
var sanitizeLogStatus = regexp.MustCompile(`\(SSTAT\s*:\s*(0x[0-9a-fA-F]+|\d+)\)`)

// pollSanitizeStatus polls `nvme sanitize-log` at d.pollInterval until
// the device reports completion, failure, or d.deadline elapses.
func (d *Driver) pollSanitizeStatus(ctx context.Context, device string) error {
	deadline := time.Now().Add(d.deadline)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		out, err := d.executor.Run(ctx, d.paths.nvme, "sanitize-log", device)
		if err == nil {
			switch sanitizeStatusCode(out) {
			case sanitizeComplete:
				return nil
			case sanitizeFailed:
				return errors.New(errors.HardwareCommandFailed, "device reported sanitize failure").
					WithMetadata("device", device)
			}
		}

		if time.Now().After(deadline) {
			return errors.New(errors.HardwareTimedOut, "sanitize did not complete before deadline").
				WithMetadata("device", device)
		}

		select {
		case <-ctx.Done():
			return errors.New(errors.HardwareTimedOut, "context cancelled while polling sanitize status").
				WithMetadata("device", device)
		case <-ticker.C:
		}
	}
}

type sanitizeStatus int

const (
	sanitizeUnknown sanitizeStatus = iota
	sanitizeInProgress
	sanitizeComplete
	sanitizeFailed
)

// sanitizeStatusCode extracts the low 3 bits of the NVMe Sanitize
// Status log page's SSTAT field: 1=in progress, 2=complete
// successfully, 3/4/5=completed with various failure/interruption
// reasons.
func sanitizeStatusCode(out []byte) sanitizeStatus {
	m := sanitizeLogStatus.FindSubmatch(out)
	if m == nil {
		return sanitizeUnknown
	}
	text := strings.TrimPrefix(string(m[1]), "0x")
	base := 16
	if !strings.HasPrefix(string(m[1]), "0x") {
		base = 10
	}
	val, err := strconv.ParseInt(text, base, 64)
	if err != nil {
		return sanitizeUnknown
	}
	switch val & 0x7 {
	case 1:
		return sanitizeInProgress
	case 2:
		return sanitizeComplete
	case 3, 4, 5:
		return sanitizeFailed
	default:
		return sanitizeUnknown
	}
}
