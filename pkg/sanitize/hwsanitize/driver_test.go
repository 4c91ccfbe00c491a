// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hwsanitize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

func testDriver() *Driver {
	cfg := &config.Config{}
	cfg.Tools.Hdparm = "/sbin/hdparm"
	cfg.Tools.Nvme = "/usr/sbin/nvme"
	cfg.Sanitize.HardwarePollInterval = "1s"
	return NewDriver(nil, cfg)
}

func TestExecuteSimulatesWhenNotAllowReal(t *testing.T) {
	d := testDriver()
	facts := types.DriveFacts{
		DevicePath:   "/dev/sda",
		Capabilities: types.NewCapabilitySet(types.CapAtaSecureErase),
	}
	simulated, err := d.Execute(context.Background(), facts, types.Method{Kind: types.MethodAtaSecureErase}, false)
	require.NoError(t, err)
	require.True(t, simulated)
}

func TestAtaSecureEraseRejectsMissingCapability(t *testing.T) {
	d := testDriver()
	facts := types.DriveFacts{DevicePath: "/dev/sda", Capabilities: types.NewCapabilitySet()}
	_, err := d.Execute(context.Background(), facts, types.Method{Kind: types.MethodAtaSecureErase}, false)
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.HardwareUnsupported, code)
}

func TestAtaSecureEraseRejectsFrozenSecurity(t *testing.T) {
	d := testDriver()
	facts := types.DriveFacts{
		DevicePath:   "/dev/sda",
		Capabilities: types.NewCapabilitySet(types.CapAtaSecureErase),
		HiddenRegion: types.HiddenRegion{SecurityFrozen: true},
	}
	_, err := d.Execute(context.Background(), facts, types.Method{Kind: types.MethodAtaSecureErase}, true)
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.HardwareSecurityFrozen, code)
}

func TestNvmeSanitizeRejectsMissingCapability(t *testing.T) {
	d := testDriver()
	facts := types.DriveFacts{DevicePath: "/dev/nvme0n1", Capabilities: types.NewCapabilitySet()}
	_, err := d.Execute(context.Background(), facts, types.Method{Kind: types.MethodNvmeSanitize, NvmeMode: types.NvmeSanitizeModeCrypto}, false)
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.HardwareUnsupported, code)
}

func TestCryptoEraseRejectsNonNvme(t *testing.T) {
	d := testDriver()
	facts := types.DriveFacts{
		DevicePath:   "/dev/sda",
		Kind:         types.KindSSD,
		Interface:    types.InterfaceATA,
		Capabilities: types.NewCapabilitySet(types.CapCryptoErase),
	}
	_, err := d.Execute(context.Background(), facts, types.Method{Kind: types.MethodCryptoErase}, true)
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.HardwareUnsupported, code)
}

func TestSanitizeStatusCodeParsesHexSstat(t *testing.T) {
	require.Equal(t, sanitizeComplete, sanitizeStatusCode([]byte("Sanitize Progress                          (SPROG) :  65535\nSanitize Status                            (SSTAT) :  0x102")))
	require.Equal(t, sanitizeInProgress, sanitizeStatusCode([]byte("(SSTAT) : 0x1")))
	require.Equal(t, sanitizeFailed, sanitizeStatusCode([]byte("(SSTAT) : 0x3")))
	require.Equal(t, sanitizeUnknown, sanitizeStatusCode([]byte("no match here")))
}
