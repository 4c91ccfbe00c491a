// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

func TestClassifyHDD(t *testing.T) {
	raw := []byte(`{
		"device": {"name": "/dev/sda", "type": "sat", "protocol": "ATA"},
		"model_name": "WDC WD40",
		"serial_number": "SN123",
		"rotation_rate": 7200,
		"logical_block_size": 512,
		"user_capacity": {"bytes": 4000000000000},
		"ata_security": {"supported": true, "frozen": false, "enhanced_erase_supported": true}
	}`)
	report, err := parseSmartctlReport(raw)
	require.NoError(t, err)

	facts := classify("/dev/sda", report)
	require.Equal(t, types.KindHDD, facts.Kind)
	require.Equal(t, types.InterfaceATA, facts.Interface)
	require.Equal(t, int64(4000000000000), facts.UserCapacityBytes)
	require.True(t, facts.Capabilities.Has(types.CapAtaSecureErase))
	require.True(t, facts.Capabilities.Has(types.CapAtaEnhancedSecureErase))
}

func TestClassifySSDRotationRateOne(t *testing.T) {
	raw := []byte(`{
		"device": {"name": "/dev/sdb", "type": "sat", "protocol": "ATA"},
		"rotation_rate": 1,
		"logical_block_size": 512,
		"user_capacity": {"bytes": 500000000000}
	}`)
	report, err := parseSmartctlReport(raw)
	require.NoError(t, err)

	facts := classify("/dev/sdb", report)
	require.Equal(t, types.KindSSD, facts.Kind)
}

func TestClassifyNVMe(t *testing.T) {
	raw := []byte(`{
		"device": {"name": "/dev/nvme0n1", "type": "nvme", "protocol": "NVMe"},
		"nvme_namespaces": [{"size": {"bytes": 1000000000000}}],
		"nvme_sanitize_device_capabilities": {
			"sanitize_commands_supported": {"block_erase": true, "crypto_erase": true}
		}
	}`)
	report, err := parseSmartctlReport(raw)
	require.NoError(t, err)

	facts := classify("/dev/nvme0n1", report)
	require.Equal(t, types.KindNVMe, facts.Kind)
	require.Equal(t, types.InterfaceNVMe, facts.Interface)
	require.Equal(t, int64(1000000000000), facts.UserCapacityBytes)
	require.True(t, facts.Capabilities.Has(types.CapNvmeSanitizeBlock))
	require.True(t, facts.Capabilities.Has(types.CapNvmeSanitizeCrypto))
}

func TestClassifyUSBWinsOverSATA(t *testing.T) {
	raw := []byte(`{
		"device": {"name": "/dev/sdc", "type": "usb", "protocol": "ATA"},
		"rotation_rate": 0,
		"user_capacity": {"bytes": 32000000000}
	}`)
	report, err := parseSmartctlReport(raw)
	require.NoError(t, err)

	facts := classify("/dev/sdc", report)
	require.Equal(t, types.InterfaceUSB, facts.Interface)
}

func TestClassifyFrozenSecurityExcludesCapability(t *testing.T) {
	raw := []byte(`{
		"device": {"name": "/dev/sdd", "type": "sat", "protocol": "ATA"},
		"ata_security": {"supported": true, "frozen": true}
	}`)
	report, err := parseSmartctlReport(raw)
	require.NoError(t, err)

	facts := classify("/dev/sdd", report)
	require.False(t, facts.Capabilities.Has(types.CapAtaSecureErase))
	require.True(t, facts.HiddenRegion.SecurityFrozen)
}
