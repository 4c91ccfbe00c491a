// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package types holds the engine's shared data model: drive facts,
// patterns, plans, progress, results, and certificates. Every type
// here is a plain value — once constructed, the engine never mutates
// one in place.
package types

import (
	"time"

	"github.com/tinkershack/sanitor/pkg/errors"
)

// Identity carries best-effort drive-identification strings. Any field
// may be empty if the device did not report it.
type Identity struct {
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	Firmware string `json:"firmware"`
}

// HiddenRegion summarizes C2's findings about a drive's addressable
// capacity versus its native capacity.
type HiddenRegion struct {
	HPABytes        int64 `json:"hpa_bytes"`
	DCOSuspected    bool  `json:"dco_suspected"`
	SecurityFrozen  bool  `json:"security_frozen"`
	SecurityLocked  bool  `json:"security_locked"`
}

// CapabilitySet is the set of hardware sanitize primitives a drive
// supports, keyed for O(1) membership tests.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a CapabilitySet from a list of capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether cap is present in the set.
func (s CapabilitySet) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// List returns the set's members in a stable, deterministic order.
func (s CapabilitySet) List() []Capability {
	order := []Capability{
		CapAtaSecureErase, CapAtaEnhancedSecureErase,
		CapNvmeSanitizeBlock, CapNvmeSanitizeCrypto, CapNvmeSanitizeOverwrite,
		CapCryptoErase,
	}
	out := make([]Capability, 0, len(s))
	for _, c := range order {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// DriveFacts is the immutable snapshot produced by the Device Probe
// (C1) and enriched by the Hidden-Region Manager (C2). Once returned
// from probe(), a DriveFacts value is never mutated.
type DriveFacts struct {
	DevicePath string `json:"device_path"`

	Kind      DriveKind     `json:"kind"`
	Interface InterfaceKind `json:"interface"`
	Identity  Identity      `json:"identity"`

	UserCapacityBytes   int64 `json:"user_capacity_bytes"`
	NativeCapacityBytes int64 `json:"native_capacity_bytes"`
	SectorSizeBytes     int   `json:"sector_size_bytes"`

	HiddenRegion HiddenRegion  `json:"hidden_region"`
	Capabilities CapabilitySet `json:"-"`

	// CapabilityList mirrors Capabilities in a JSON-serializable,
	// order-stable form (map keys don't round-trip deterministically).
	CapabilityList []Capability `json:"capabilities"`

	IsSystemDevice bool `json:"is_system_device"`

	ProbedAt time.Time `json:"probed_at"`
}

// Finalize populates CapabilityList from Capabilities; call once after
// building a DriveFacts so JSON serialization is deterministic.
func (f *DriveFacts) Finalize() {
	f.CapabilityList = f.Capabilities.List()
}

// Validate checks the invariant user ≤ native and a sane sector size.
func (f *DriveFacts) Validate() *errors.SanitorError {
	if f.UserCapacityBytes > f.NativeCapacityBytes {
		return errors.New(errors.ProbeParseFailed, "user_capacity_bytes exceeds native_capacity_bytes").
			WithMetadata("device", f.DevicePath)
	}
	if f.SectorSizeBytes != 512 && f.SectorSizeBytes != 4096 {
		return errors.New(errors.ProbeParseFailed, "sector_size_bytes must be 512 or 4096").
			WithMetadata("device", f.DevicePath)
	}
	return nil
}
