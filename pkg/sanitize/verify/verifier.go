// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package verify implements the Verifier (C7): post-sanitization
// sampling of a device and the pass/fail decision over the sampled
// bytes, per spec.md section 4.7.
package verify

import (
	"context"
	"crypto/rand"
	"math/big"
	"os"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// Verifier samples a device after sanitization and decides whether the
// post-state is consistent with the pattern that was written.
type Verifier struct {
	logger      logger.Logger
	sampleCount int
	sampleSize  int
}

// NewVerifier builds a Verifier from the engine configuration.
func NewVerifier(l logger.Logger, cfg *config.Config) *Verifier {
	count := cfg.Verification.SampleBlockCount
	if count < types.MinVerifySampleCount {
		count = types.MinVerifySampleCount
	}
	return &Verifier{
		logger:      l,
		sampleCount: count,
		sampleSize:  types.MinVerifySampleSizeBytes,
	}
}

// Verify samples facts.DevicePath and checks it against lastStep, the
// final pattern step written to the device. hardware, when true,
// short-circuits sampling: hardware-sanitize primitives are
// self-verifying, per spec.md section 4.7, unless hardwareFailed
// reports that the device itself signalled a sanitize failure.
func (v *Verifier) Verify(ctx context.Context, facts types.DriveFacts, lastStep types.PatternStep, hardware, hardwareFailed bool) (types.VerifierOutcome, error) {
	if hardware {
		return types.VerifierOutcome{
			Method:    types.VerifyMethodSelfVerify,
			Passed:    !hardwareFailed,
			Attempted: true,
		}, nil
	}

	if facts.UserCapacityBytes <= 0 {
		// Zero-length device range boundary case: vacuously passed
		// with zero samples, per spec.md section 8.
		return types.VerifierOutcome{Passed: true, Attempted: true, Method: verifyMethodFor(lastStep)}, nil
	}

	f, err := os.OpenFile(facts.DevicePath, os.O_RDONLY, 0)
	if err != nil {
		return types.VerifierOutcome{}, errors.Wrap(err, errors.VerifyReadFailed).WithMetadata("device", facts.DevicePath)
	}
	defer f.Close()

	sectorSize := int64(facts.SectorSizeBytes)
	if sectorSize <= 0 {
		sectorSize = 512
	}

	offsets, err := v.sampleOffsets(facts.UserCapacityBytes, sectorSize)
	if err != nil {
		return types.VerifierOutcome{}, err
	}

	outcome := types.VerifierOutcome{
		Method:    verifyMethodFor(lastStep),
		Attempted: true,
		Passed:    true,
	}

	buf := make([]byte, v.sampleSize)
	for _, off := range offsets {
		n, err := f.ReadAt(buf, off)
		if err != nil && n < len(buf) {
			return types.VerifierOutcome{}, errors.Wrap(err, errors.VerifyReadFailed).
				WithMetadata("device", facts.DevicePath).WithMetadata("offset", fmtInt(off))
		}
		outcome.Samples++
		if !blockMatches(lastStep, buf, off) {
			outcome.Passed = false
			outcome.FailedOffsets = append(outcome.FailedOffsets, off)
		}
	}

	outcome.SampleFraction = float64(outcome.Samples*v.sampleSize) / float64(facts.UserCapacityBytes)
	return outcome, nil
}

func verifyMethodFor(step types.PatternStep) types.VerifyMethod {
	switch step.Kind {
	case types.StepFixed:
		return types.VerifyMethodFixed
	case types.StepAlternating:
		return types.VerifyMethodAlternating
	default:
		return types.VerifyMethodRandom
	}
}

// blockMatches applies spec.md section 4.7's decision rule to one
// sampled block. off is the block's absolute device offset, needed to
// keep an Alternating block's byte parity consistent with how the
// pattern source filled it. This assumes pattern.Source.fillAlternating
// starts each chunk's parity at chunk-relative index 0, which only
// matches off's parity because executor chunks and RangeStart are
// always even; Alternating is override-only today, so no default plan
// exercises this.
func blockMatches(step types.PatternStep, buf []byte, off int64) bool {
	switch step.Kind {
	case types.StepFixed:
		for _, b := range buf {
			if b != step.ByteA {
				return false
			}
		}
		return true
	case types.StepAlternating:
		for i, b := range buf {
			want := step.ByteA
			if (off+int64(i))%2 != 0 {
				want = step.ByteB
			}
			if b != want {
				return false
			}
		}
		return true
	case types.StepRandom:
		return !isAllByte(buf, 0x00) && !isAllByte(buf, 0xFF)
	default:
		return false
	}
}

func isAllByte(buf []byte, b byte) bool {
	for _, v := range buf {
		if v != b {
			return false
		}
	}
	return true
}

// sampleOffsets draws v.sampleCount sector-aligned, non-negative
// offsets uniformly at random from [0, capacity-sampleSize], using the
// OS CSPRNG for the same reason the Pattern Source does: deterministic
// or predictable sample placement would let a partially-overwritten
// device pass by accident.
func (v *Verifier) sampleOffsets(capacity, sectorSize int64) ([]int64, error) {
	span := capacity - int64(v.sampleSize)
	if span < 0 {
		span = 0
	}
	maxSectors := span/sectorSize + 1

	offsets := make([]int64, v.sampleCount)
	for i := range offsets {
		n, err := rand.Int(rand.Reader, big.NewInt(maxSectors))
		if err != nil {
			return nil, errors.Wrap(err, errors.VerifySampleRangeInvalid).WithMetadata("device_capacity", fmtInt(capacity))
		}
		offsets[i] = n.Int64() * sectorSize
	}
	return offsets, nil
}

func fmtInt(v int64) string {
	return (&big.Int{}).SetInt64(v).String()
}
