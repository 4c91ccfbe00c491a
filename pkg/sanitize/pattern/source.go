// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package pattern implements the Pattern Source (C3): on-demand
// overwrite buffer generation for fixed, alternating, and
// cryptographically random pattern steps.
package pattern

import (
	"crypto/rand"
	"sync"

	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// Source produces byte buffers for a PatternStep. Every Fill writes the
// pattern into the caller's buffer: Fixed and Alternating bytes are
// written in place, and Random bytes are drawn fresh from the OS
// entropy source on each call, so a long pass isn't one repeating
// buffer.
type Source struct {
	mu sync.Mutex

	regenIntervalBytes int64
	bytesSinceRegen     int64
	randomBuf           []byte
}

// NewSource builds a Source. regenIntervalMiB must be ≥
// types.MinPatternRegenIntervalMiB; values below the floor are
// clamped up to it.
func NewSource(regenIntervalMiB int) *Source {
	if regenIntervalMiB < types.MinPatternRegenIntervalMiB {
		regenIntervalMiB = types.MinPatternRegenIntervalMiB
	}
	return &Source{
		regenIntervalBytes: int64(regenIntervalMiB) * 1024 * 1024,
	}
}

// Fill writes len(buf) pattern bytes for step into buf.
func (s *Source) Fill(step types.PatternStep, buf []byte) error {
	if len(buf) == 0 {
		return errors.New(errors.PatternBufferTooSmall, "buffer length is zero")
	}

	switch step.Kind {
	case types.StepFixed:
		fillFixed(buf, step.ByteA)
		return nil
	case types.StepAlternating:
		fillAlternating(buf, step.ByteA, step.ByteB)
		return nil
	case types.StepRandom:
		return s.fillRandom(buf)
	default:
		return errors.New(errors.PatternInvalidStep, "unrecognized pattern step kind")
	}
}

func fillFixed(buf []byte, b byte) {
	for i := range buf {
		buf[i] = b
	}
}

func fillAlternating(buf []byte, a, b byte) {
	for i := range buf {
		if i%2 == 0 {
			buf[i] = a
		} else {
			buf[i] = b
		}
	}
}

// RegenIntervalBytes returns the configured "regenerate every N
// bytes" threshold, documented per spec.md section 4.3.
func (s *Source) RegenIntervalBytes() int64 {
	return s.regenIntervalBytes
}

// fillRandom fills buf directly from the OS CSPRNG (crypto/rand),
// which draws fresh entropy on every call — two buffers produced in
// the same pass are therefore always statistically independent.
// bytesSinceRegen counts bytes within the configured window and resets
// at each boundary; it does not change what is written.
func (s *Source) fillRandom(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := rand.Read(buf); err != nil {
		return errors.Wrap(err, errors.PatternEntropyUnavailable)
	}

	s.bytesSinceRegen += int64(len(buf))
	if s.bytesSinceRegen >= s.regenIntervalBytes {
		s.bytesSinceRegen = 0
	}

	return nil
}
