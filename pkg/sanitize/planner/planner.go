// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package planner implements the Planner (C6): the pure function
// mapping (DriveFacts, ComplianceLevel) to an ordered Plan, per
// spec.md section 4.6's selection table.
package planner

import (
	"fmt"
	"time"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/internal/command"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// Planner builds Plans. It carries no device I/O of its own; every
// decision is made from the DriveFacts it's handed.
type Planner struct {
	logger                      logger.Logger
	systemDeviceOverrideAllowed bool
}

// NewPlanner builds a Planner from the engine configuration.
func NewPlanner(l logger.Logger, cfg *config.Config) *Planner {
	return &Planner{
		logger:                      l,
		systemDeviceOverrideAllowed: cfg.Sanitize.SystemDeviceOverrideAllowed,
	}
}

// Options carries the caller-supplied knobs that influence plan
// construction without changing the selection table itself.
type Options struct {
	// PatternOverride selects a specific software-overwrite program
	// instead of the table's default for the drive kind (e.g. the
	// supplemented DoD7 or Gutmann35 programs).
	PatternOverride *types.PatternProgram
}

// Plan builds an ordered Plan for facts at level, per spec.md section
// 4.6. A plan for a system device is always rejected; this is the one
// check the planner never lets a caller bypass in production (the
// systemDeviceOverrideAllowed config knob exists solely for test
// harnesses driving loopback "devices", never set true by default).
func (p *Planner) Plan(facts types.DriveFacts, level types.ComplianceLevel, opts Options) (types.Plan, error) {
	plan := types.Plan{DevicePath: facts.DevicePath, Level: level}

	if facts.IsSystemDevice && !p.systemDeviceOverrideAllowed {
		return types.Plan{}, errors.New(errors.PlannerSystemDeviceProtected, "refusing to plan against the system device").
			WithMetadata("device", facts.DevicePath)
	}

	if facts.UserCapacityBytes <= 0 {
		// Zero-length device range (spec.md section 8 boundary case):
		// a no-op plan, not an error.
		return plan, nil
	}

	// sanitizeCapacity is the byte range a software-overwrite step must
	// cover. When a RemoveHpa step is about to be prefixed, the HPA
	// will be gone by the time the overwrite runs, so the range must
	// already span NativeCapacityBytes (spec.md section 8 scenario 5)
	// rather than the pre-removal UserCapacityBytes — otherwise the
	// freed region is never overwritten.
	sanitizeCapacity := facts.UserCapacityBytes
	if facts.HiddenRegion.HPABytes > 0 && (level == types.LevelPurge || level == types.LevelClear) {
		sanitizeCapacity = facts.NativeCapacityBytes
	}

	switch level {
	case types.LevelDestroy:
		p.planDestroy(&plan)
	case types.LevelPurge:
		if err := p.planPurge(&plan, facts, sanitizeCapacity); err != nil {
			return types.Plan{}, err
		}
	case types.LevelClear:
		p.planClear(&plan, facts, opts, sanitizeCapacity)
	default:
		return types.Plan{}, errors.New(errors.PlannerInvalidLevel, "unrecognized compliance level").
			WithMetadata("level", string(level))
	}

	p.prefixHpaRemoval(&plan, facts, level)
	p.annotateWarnings(&plan, facts)

	if len(plan.Steps) == 0 {
		return types.Plan{}, errors.New(errors.PlannerEmptyPlan, "planner produced an empty plan for a non-zero-length device").
			WithMetadata("device", facts.DevicePath)
	}

	return plan, nil
}

func (p *Planner) planDestroy(plan *types.Plan) {
	plan.Steps = append(plan.Steps, types.PlanStep{
		Method:      types.Method{Kind: types.MethodPhysicalDestructionGuidance},
		EstBytes:    0,
		EstDuration: 0,
		Description: "No software or hardware primitive can guarantee Destroy-level media destruction; physically destroy the media (shred, degauss, or incinerate per NIST SP 800-88 Rev. 1 Destroy guidance).",
	})
}

func (p *Planner) planPurge(plan *types.Plan, facts types.DriveFacts, sanitizeCapacity int64) error {
	type candidate struct {
		cap    types.Capability
		method types.Method
		label  string
	}
	candidates := []candidate{
		{types.CapCryptoErase, types.Method{Kind: types.MethodCryptoErase}, "CryptoErase"},
		{types.CapNvmeSanitizeCrypto, types.Method{Kind: types.MethodNvmeSanitize, NvmeMode: types.NvmeSanitizeModeCrypto}, "NvmeSanitize(Crypto)"},
		{types.CapNvmeSanitizeBlock, types.Method{Kind: types.MethodNvmeSanitize, NvmeMode: types.NvmeSanitizeModeBlock}, "NvmeSanitize(Block)"},
		{types.CapAtaEnhancedSecureErase, types.Method{Kind: types.MethodAtaSecureErase, Enhanced: true}, "AtaSecureErase(enhanced=true)"},
		{types.CapAtaSecureErase, types.Method{Kind: types.MethodAtaSecureErase, Enhanced: false}, "AtaSecureErase(enhanced=false)"},
	}

	for _, c := range candidates {
		if !facts.Capabilities.Has(c.cap) {
			continue
		}
		plan.Steps = append(plan.Steps, types.PlanStep{
			Method:      c.method,
			EstBytes:    sanitizeCapacity,
			EstDuration: types.DefaultSanitizeDeadline,
			Description: fmt.Sprintf("%s over the whole device (%s)", c.label, command.DisplayCommand(facts.DevicePath)),
			RangeStart:  0,
			RangeEnd:    sanitizeCapacity,
		})
		return nil
	}

	// The planner refuses to silently downgrade a Purge request to a
	// software overwrite, per spec.md section 4.6 and section 7.
	return errors.New(errors.PlannerNoPurgeMethod, "device supports no Purge-grade primitive").
		WithMetadata("device", facts.DevicePath)
}

func (p *Planner) planClear(plan *types.Plan, facts types.DriveFacts, opts Options, sanitizeCapacity int64) {
	program := defaultClearProgram(facts.Kind)
	if opts.PatternOverride != nil {
		program = *opts.PatternOverride
	}

	throughput := throughputFor(facts.Kind)
	estDuration := estimateDuration(sanitizeCapacity, throughput)

	plan.Steps = append(plan.Steps, types.PlanStep{
		Method:      types.Method{Kind: types.MethodSoftwareOverwrite, PatternProgram: program},
		EstBytes:    sanitizeCapacity,
		EstDuration: estDuration,
		Description: fmt.Sprintf("SoftwareOverwrite(%s) across %d bytes", program.Name, sanitizeCapacity),
		RangeStart:  0,
		RangeEnd:    sanitizeCapacity,
	})
}

func defaultClearProgram(kind types.DriveKind) types.PatternProgram {
	if kind == types.KindHDD {
		return types.ProgramDoD3
	}
	// SSD/NVMe/Removable: a single random pass, per spec.md section
	// 4.6 — multi-pass overwrite on flash increases wear without
	// added assurance.
	return types.ProgramRandom
}

func throughputFor(kind types.DriveKind) int64 {
	switch kind {
	case types.KindHDD:
		return types.ThroughputHDDBytesPerSec
	case types.KindRemovable:
		return types.ThroughputRemovableBytesPerSec
	default:
		return types.ThroughputSSDBytesPerSec
	}
}

func estimateDuration(bytes, throughputBytesPerSec int64) time.Duration {
	if throughputBytesPerSec <= 0 || bytes <= 0 {
		return 0
	}
	seconds := float64(bytes) / float64(throughputBytesPerSec)
	return time.Duration(seconds * float64(time.Second))
}

// prefixHpaRemoval prepends a RemoveHpa step when facts report a
// nonzero HPA and the level is Purge or Clear, per spec.md section 4.6.
func (p *Planner) prefixHpaRemoval(plan *types.Plan, facts types.DriveFacts, level types.ComplianceLevel) {
	if facts.HiddenRegion.HPABytes <= 0 {
		return
	}
	if level != types.LevelPurge && level != types.LevelClear {
		return
	}

	step := types.PlanStep{
		Method:      types.Method{Kind: types.MethodRemoveHPA},
		EstBytes:    0,
		EstDuration: 0,
		Description: fmt.Sprintf("Remove host protected area (%d bytes) before sanitizing", facts.HiddenRegion.HPABytes),
	}
	plan.Steps = append([]types.PlanStep{step}, plan.Steps...)
}

// annotateWarnings records non-fatal planning notes spec.md section
// 4.2/4.6 expects the planner to surface but not act on.
func (p *Planner) annotateWarnings(plan *types.Plan, facts types.DriveFacts) {
	if facts.HiddenRegion.DCOSuspected {
		plan.Warnings = append(plan.Warnings,
			"device configuration overlay suspected: reported native capacity deviates from the nearest common marketing size; DCO removal is not attempted and residual hidden capacity may remain")
	}
	if facts.HiddenRegion.SecurityFrozen {
		plan.Warnings = append(plan.Warnings,
			"ATA security is frozen; hardware secure-erase steps will fail until the device is power-cycled")
	}
}
