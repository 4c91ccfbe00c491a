// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hidden

import (
	"context"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// Manager implements the Hidden-Region Manager (C2).
type Manager struct {
	logger logger.Logger
	hdparm *hdparmN
}

// NewManager builds a Manager.
func NewManager(l logger.Logger, cfg *config.Config) *Manager {
	return &Manager{
		logger: l,
		hdparm: newHdparmN(l, cfg),
	}
}

// Detect refines facts' HiddenRegion and capacity fields with HPA and
// DCO findings. Only ATA devices carry an HPA/DCO concept; other
// interfaces are returned unchanged.
func (m *Manager) Detect(ctx context.Context, facts types.DriveFacts) types.DriveFacts {
	if facts.Interface != types.InterfaceATA {
		return facts
	}

	userMax, nativeMax, err := m.hdparm.readMaxAddress(ctx, facts.DevicePath)
	if err != nil {
		// READ NATIVE MAX ADDRESS failing means native = user, per
		// spec.md section 4.1.
		m.logger.Debug("hpa detection unavailable, assuming no hidden region", "device", facts.DevicePath, "err", err)
		return facts
	}

	sectorSize := int64(facts.SectorSizeBytes)
	hpaBytes := (nativeMax - userMax) * sectorSize
	if hpaBytes < 0 {
		hpaBytes = 0
	}

	facts.NativeCapacityBytes = nativeMax * sectorSize
	facts.HiddenRegion.HPABytes = hpaBytes
	facts.HiddenRegion.DCOSuspected = suspectDCO(facts.NativeCapacityBytes)
	facts.Finalize()

	return facts
}

// RemoveHPA issues SET MAX ADDRESS[EXT] with the native max LBA, then
// re-probes to confirm user_max_lba == native_max_lba. Returns
// HiddenRemovalIncomplete if the re-probe disagrees.
func (m *Manager) RemoveHPA(ctx context.Context, facts types.DriveFacts) (types.DriveFacts, error) {
	if facts.HiddenRegion.HPABytes <= 0 {
		return facts, nil
	}

	sectorSize := int64(facts.SectorSizeBytes)
	nativeMaxLBA := facts.NativeCapacityBytes / sectorSize

	if err := m.hdparm.setMaxAddress(ctx, facts.DevicePath, nativeMaxLBA); err != nil {
		return facts, err
	}

	userMax, nativeMax, err := m.hdparm.readMaxAddress(ctx, facts.DevicePath)
	if err != nil {
		return facts, errors.Wrap(err, errors.HiddenRemovalIncomplete).WithMetadata("device", facts.DevicePath)
	}

	if userMax != nativeMax {
		return facts, errors.New(errors.HiddenRemovalIncomplete, "user max LBA still below native max LBA after SET MAX ADDRESS").
			WithMetadata("device", facts.DevicePath)
	}

	facts.UserCapacityBytes = userMax * sectorSize
	facts.HiddenRegion.HPABytes = 0
	facts.Finalize()

	return facts, nil
}
