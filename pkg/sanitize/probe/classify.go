// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"strings"

	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// classify implements spec.md section 4.1's deterministic
// classification rules over one parsed smartctl report.
func classify(devicePath string, r *smartctlReport) types.DriveFacts {
	f := types.DriveFacts{
		DevicePath: devicePath,
		Identity: types.Identity{
			Model:    r.ModelName,
			Serial:   r.SerialNumber,
			Firmware: r.FirmwareVersion,
		},
		SectorSizeBytes: 512,
	}

	f.Kind = classifyKind(devicePath, r)
	f.Interface = classifyInterface(devicePath, r)

	if r.LogicalBlockSize == 512 || r.LogicalBlockSize == 4096 {
		f.SectorSizeBytes = r.LogicalBlockSize
	}

	f.UserCapacityBytes = userCapacity(r)
	// native_capacity is refined by the Hidden-Region Manager (C2)
	// via READ NATIVE MAX ADDRESS[EXT]; the prober's best-effort
	// default is "no hidden region observed yet".
	f.NativeCapacityBytes = f.UserCapacityBytes

	f.HiddenRegion = types.HiddenRegion{
		SecurityFrozen: r.ATASecurity.Frozen,
		SecurityLocked: r.ATASecurity.Locked,
	}

	f.Capabilities = classifyCapabilities(r)
	f.Finalize()

	return f
}

func classifyKind(devicePath string, r *smartctlReport) types.DriveKind {
	proto := strings.ToLower(r.Device.Protocol)
	switch {
	case strings.Contains(proto, "nvme") || strings.Contains(devicePath, "nvme"):
		return types.KindNVMe
	case len(r.NVMeNamespaces) > 0:
		return types.KindNVMe
	case r.RotationRate == 1:
		return types.KindSSD
	case r.RotationRate > 1:
		return types.KindHDD
	case strings.Contains(devicePath, "sd") && strings.Contains(strings.ToLower(r.Device.Type), "usb"):
		return types.KindRemovable
	default:
		return types.KindUnknown
	}
}

func classifyInterface(devicePath string, r *smartctlReport) types.InterfaceKind {
	typ := strings.ToLower(r.Device.Type)
	proto := strings.ToLower(r.Device.Protocol)

	// USB wins over SATA when both are reported (bus topology), per
	// spec.md section 4.1.
	if strings.Contains(typ, "usb") {
		return types.InterfaceUSB
	}
	switch {
	case strings.Contains(proto, "nvme"):
		return types.InterfaceNVMe
	case strings.Contains(proto, "ata"), strings.Contains(typ, "ata"), strings.Contains(typ, "sat"):
		return types.InterfaceATA
	case strings.Contains(proto, "scsi"), strings.Contains(typ, "scsi"):
		return types.InterfaceSCSI
	default:
		return types.InterfaceUnknown
	}
}

func userCapacity(r *smartctlReport) int64 {
	if len(r.NVMeNamespaces) > 0 {
		return r.NVMeNamespaces[0].Size.Bytes
	}
	return r.UserCapacity.Bytes
}

func classifyCapabilities(r *smartctlReport) types.CapabilitySet {
	var caps []types.Capability

	if r.ATASecurity.Supported && !r.ATASecurity.Frozen {
		caps = append(caps, types.CapAtaSecureErase)
		if r.ATASecurity.EnhancedEraseSupported {
			caps = append(caps, types.CapAtaEnhancedSecureErase)
		}
	}

	if r.NVMeSanitizeLog.SanitizeCommandsSupported.BlockErase {
		caps = append(caps, types.CapNvmeSanitizeBlock)
	}
	if r.NVMeSanitizeLog.SanitizeCommandsSupported.CryptoErase {
		caps = append(caps, types.CapNvmeSanitizeCrypto)
	}
	if r.NVMeSanitizeLog.SanitizeCommandsSupported.Overwrite {
		caps = append(caps, types.CapNvmeSanitizeOverwrite)
	}

	if r.SelfEncryptingDrive.Supported {
		caps = append(caps, types.CapCryptoErase)
	}

	return types.NewCapabilitySet(caps...)
}
