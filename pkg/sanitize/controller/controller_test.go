// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/internal/events"
	"github.com/tinkershack/sanitor/pkg/sanitize/certify"
	"github.com/tinkershack/sanitor/pkg/sanitize/executor"
	"github.com/tinkershack/sanitor/pkg/sanitize/hidden"
	"github.com/tinkershack/sanitor/pkg/sanitize/hwsanitize"
	"github.com/tinkershack/sanitor/pkg/sanitize/pattern"
	"github.com/tinkershack/sanitor/pkg/sanitize/planner"
	"github.com/tinkershack/sanitor/pkg/sanitize/registry"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
	"github.com/tinkershack/sanitor/pkg/sanitize/verify"
)

// fakeProber satisfies deviceProber without shelling out to smartctl
// or lsblk. ready, if non-nil, blocks Probe until closed, letting a
// test pin down happens-before ordering against Cancel.
type fakeProber struct {
	facts types.DriveFacts
	err   error
	ready chan struct{}
}

func (f fakeProber) Probe(ctx context.Context, path string) (types.DriveFacts, error) {
	if f.ready != nil {
		<-f.ready
	}
	return f.facts, f.err
}

func testControllerConfig(t *testing.T) *config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Sanitize.AllowRealDevices = true
	cfg.Sanitize.SystemDeviceOverrideAllowed = false
	cfg.Sanitize.PassBufferSizeBytes = 64 * 1024
	cfg.Sanitize.PatternRegenIntervalMiB = types.MinPatternRegenIntervalMiB
	cfg.Sanitize.HardwarePollInterval = "10ms"
	cfg.Verification.SampleBlockCount = 10
	cfg.Verification.StrictMode = false
	cfg.Keys.Issuer.DirPath = filepath.Join(t.TempDir(), "issuer")
	cfg.Keys.Issuer.OrgName = "testorg"
	return &cfg
}

func newTestController(t *testing.T, cfg *config.Config, prober deviceProber) *Controller {
	t.Helper()
	authority, err := certify.Load(nil, cfg)
	require.NoError(t, err)
	bus := events.NewBus(nil)

	return &Controller{
		bus:       bus,
		registry:  registry.New(nil),
		prober:    prober,
		hidden:    hidden.NewManager(nil, cfg),
		pattern:   pattern.NewSource(cfg.Sanitize.PatternRegenIntervalMiB),
		executor:  executor.NewExecutor(nil, bus, cfg.Sanitize.PassBufferSizeBytes),
		hwdriver:  hwsanitize.NewDriver(nil, cfg),
		planner:   planner.NewPlanner(nil, cfg),
		verifier:  verify.NewVerifier(nil, cfg),
		authority: authority,

		strictMode:              cfg.Verification.StrictMode,
		allowRealDevicesDefault: cfg.Sanitize.AllowRealDevices,

		cancels:    make(map[string]*atomic.Bool),
		startTimes: make(map[string]time.Time),
		certs:      make(map[string]*types.Certificate),
	}
}

func makeLoopbackFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loopback.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(size)))
	require.NoError(t, f.Close())
	return path
}

func waitTerminal(t *testing.T, c *Controller, jobID string) types.OperationResult {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := c.Status(jobID)
		require.NoError(t, err)
		if snap.State.IsTerminal() {
			result, err := c.GetResult(jobID)
			require.NoError(t, err)
			return result
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time", jobID)
	return types.OperationResult{}
}

func TestStartClearOnHddEndToEnd(t *testing.T) {
	const size = 256 * 1024
	path := makeLoopbackFile(t, size)
	cfg := testControllerConfig(t)

	facts := types.DriveFacts{
		DevicePath:          path,
		Kind:                types.KindHDD,
		Interface:           types.InterfaceSCSI,
		UserCapacityBytes:   int64(size),
		NativeCapacityBytes: int64(size),
		SectorSizeBytes:     512,
	}
	ctrl := newTestController(t, cfg, fakeProber{facts: facts})

	jobID, err := ctrl.Start(context.Background(), path, types.LevelClear, Options{AllowRealDevices: true, VerifyAfter: true})
	require.NoError(t, err)

	result := waitTerminal(t, ctrl, jobID)
	require.Equal(t, types.StatusCompleted, result.Status)
	require.False(t, result.Simulated)
	require.True(t, result.VerifierOutcome.Attempted)
	require.True(t, result.VerifierOutcome.Passed)

	cert, ok := ctrl.Certificate(jobID)
	require.True(t, ok)
	require.NotEmpty(t, cert.ComplianceClaims)
	require.NoError(t, ctrl.authority.Verify(*cert))
}

func TestStartRejectsSystemDevice(t *testing.T) {
	cfg := testControllerConfig(t)
	facts := types.DriveFacts{
		DevicePath:         "/dev/sda",
		Kind:               types.KindHDD,
		Interface:          types.InterfaceSCSI,
		UserCapacityBytes:  1 << 20,
		IsSystemDevice:     true,
		NativeCapacityBytes: 1 << 20,
		SectorSizeBytes:    512,
	}
	ctrl := newTestController(t, cfg, fakeProber{facts: facts})

	jobID, err := ctrl.Start(context.Background(), "/dev/sda", types.LevelClear, Options{AllowRealDevices: true})
	require.NoError(t, err)

	result := waitTerminal(t, ctrl, jobID)
	require.Equal(t, types.StatusFailed, result.Status)
	require.Equal(t, types.ErrSystemDeviceProtected, result.FailureKind)

	_, ok := ctrl.Certificate(jobID)
	require.False(t, ok)
}

func TestStartPurgeWithoutCapabilityFailsAndSkipsCertification(t *testing.T) {
	cfg := testControllerConfig(t)
	facts := types.DriveFacts{
		DevicePath:          "/dev/sdb",
		Kind:                types.KindSSD,
		Interface:           types.InterfaceSCSI,
		UserCapacityBytes:   1 << 20,
		NativeCapacityBytes: 1 << 20,
		SectorSizeBytes:     512,
	}
	ctrl := newTestController(t, cfg, fakeProber{facts: facts})

	jobID, err := ctrl.Start(context.Background(), "/dev/sdb", types.LevelPurge, Options{AllowRealDevices: true})
	require.NoError(t, err)

	result := waitTerminal(t, ctrl, jobID)
	require.Equal(t, types.StatusFailed, result.Status)
	require.Equal(t, types.ErrNoPurgeMethod, result.FailureKind)

	_, ok := ctrl.Certificate(jobID)
	require.False(t, ok)
}

func TestStartPurgeWithoutCapabilityCertifiesOnRequest(t *testing.T) {
	cfg := testControllerConfig(t)
	facts := types.DriveFacts{
		DevicePath:          "/dev/sdb",
		Kind:                types.KindSSD,
		Interface:           types.InterfaceSCSI,
		UserCapacityBytes:   1 << 20,
		NativeCapacityBytes: 1 << 20,
		SectorSizeBytes:     512,
	}
	ctrl := newTestController(t, cfg, fakeProber{facts: facts})

	jobID, err := ctrl.Start(context.Background(), "/dev/sdb", types.LevelPurge, Options{AllowRealDevices: true, CertifyOnFailure: true})
	require.NoError(t, err)

	result := waitTerminal(t, ctrl, jobID)
	require.Equal(t, types.StatusFailed, result.Status)

	cert, ok := ctrl.Certificate(jobID)
	require.True(t, ok)
	require.Len(t, cert.ComplianceClaims, 1)
	require.Contains(t, cert.ComplianceClaims[0], "no compliance claim")
}

func TestCancelDuringPlanningAbortsWithNoIO(t *testing.T) {
	cfg := testControllerConfig(t)
	facts := types.DriveFacts{
		DevicePath:          "/dev/sdc",
		Kind:                types.KindHDD,
		Interface:           types.InterfaceSCSI,
		UserCapacityBytes:   1 << 20,
		NativeCapacityBytes: 1 << 20,
		SectorSizeBytes:     512,
	}
	ready := make(chan struct{})
	ctrl := newTestController(t, cfg, fakeProber{facts: facts, ready: ready})

	jobID, err := ctrl.Start(context.Background(), "/dev/sdc", types.LevelClear, Options{AllowRealDevices: true})
	require.NoError(t, err)

	require.True(t, ctrl.Cancel(jobID))
	close(ready)

	result := waitTerminal(t, ctrl, jobID)
	require.Equal(t, types.StatusAborted, result.Status)
	require.Equal(t, types.ErrCancelled, result.FailureKind)
	require.Empty(t, result.StepOutcomes)
}

func TestHpaRemovalFailureRecordsWarningAndContinues(t *testing.T) {
	const size = 64 * 1024
	path := makeLoopbackFile(t, size)
	cfg := testControllerConfig(t)

	facts := types.DriveFacts{
		DevicePath:          path,
		Kind:                types.KindHDD,
		Interface:           types.InterfaceSCSI,
		UserCapacityBytes:   int64(size),
		NativeCapacityBytes: int64(size) + 4096,
		SectorSizeBytes:     512,
		HiddenRegion:        types.HiddenRegion{HPABytes: 4096},
	}
	ctrl := newTestController(t, cfg, fakeProber{facts: facts})

	jobID, err := ctrl.Start(context.Background(), path, types.LevelClear, Options{AllowRealDevices: true})
	require.NoError(t, err)

	result := waitTerminal(t, ctrl, jobID)
	require.Equal(t, types.StatusCompleted, result.Status)
	require.NotEmpty(t, result.Warnings)

	require.GreaterOrEqual(t, len(result.StepOutcomes), 2)
	hpaOutcome := result.StepOutcomes[0]
	require.Equal(t, types.MethodRemoveHPA, hpaOutcome.Method.Kind)
	require.False(t, hpaOutcome.Succeeded)
	require.Equal(t, types.ErrHpaRemovalFailed, hpaOutcome.FailureKind)
}

func TestHardwareSanitizeSimulationMode(t *testing.T) {
	cfg := testControllerConfig(t)
	facts := types.DriveFacts{
		DevicePath:          "/dev/nvme0n1",
		Kind:                types.KindNVMe,
		Interface:           types.InterfaceNVMe,
		UserCapacityBytes:   1 << 30,
		NativeCapacityBytes: 1 << 30,
		SectorSizeBytes:     512,
		Capabilities:        types.NewCapabilitySet(types.CapNvmeSanitizeBlock),
	}
	ctrl := newTestController(t, cfg, fakeProber{facts: facts})

	jobID, err := ctrl.Start(context.Background(), "/dev/nvme0n1", types.LevelPurge, Options{AllowRealDevices: false, VerifyAfter: true})
	require.NoError(t, err)

	result := waitTerminal(t, ctrl, jobID)
	require.Equal(t, types.StatusCompleted, result.Status)
	require.True(t, result.Simulated)
	require.Len(t, result.StepOutcomes, 1)
	require.True(t, result.StepOutcomes[0].Simulated)
	require.True(t, result.StepOutcomes[0].Succeeded)
	require.True(t, result.VerifierOutcome.Passed)
	require.Equal(t, types.VerifyMethodSelfVerify, result.VerifierOutcome.Method)

	cert, ok := ctrl.Certificate(jobID)
	require.True(t, ok)
	require.Contains(t, cert.ComplianceClaims[0], "simulation only")
}
