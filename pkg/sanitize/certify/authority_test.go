// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package certify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Keys.Issuer.DirPath = filepath.Join(t.TempDir(), "issuer")
	cfg.Keys.Issuer.OrgName = "testorg"
	return &cfg
}

func sampleResult() types.OperationResult {
	now := time.Now().UTC()
	return types.OperationResult{
		JobID: "job-1",
		Facts: types.DriveFacts{
			DevicePath:        "/dev/sda",
			Kind:              types.KindHDD,
			UserCapacityBytes: 1_000_000_000,
			Capabilities:      types.NewCapabilitySet(types.CapAtaSecureErase),
		},
		Plan:            types.Plan{Level: types.LevelClear, Steps: []types.PlanStep{{Method: types.Method{Kind: types.MethodSoftwareOverwrite, PatternProgram: types.ProgramDoD3}}}},
		StepOutcomes:    []types.StepOutcome{{Method: types.Method{Kind: types.MethodSoftwareOverwrite}, Succeeded: true}},
		VerifierOutcome: types.VerifierOutcome{Passed: true, Attempted: true, Samples: 10},
		StartedAt:       now.Add(-time.Minute),
		EndedAt:         now,
		Status:          types.StatusCompleted,
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	a, err := Load(nil, testConfig(t))
	require.NoError(t, err)

	cert, err := a.Issue(context.Background(), sampleResult())
	require.NoError(t, err)
	require.NotEmpty(t, cert.ContentHash)
	require.NotEmpty(t, cert.Signature)

	require.NoError(t, a.Verify(*cert))
}

func TestVerifyDetectsTamper(t *testing.T) {
	a, err := Load(nil, testConfig(t))
	require.NoError(t, err)

	cert, err := a.Issue(context.Background(), sampleResult())
	require.NoError(t, err)

	cert.Facts.DevicePath = "/dev/sdb"
	err = a.Verify(*cert)
	require.Error(t, err)
}

func TestLoadPersistsAcrossReload(t *testing.T) {
	cfg := testConfig(t)
	a1, err := Load(nil, cfg)
	require.NoError(t, err)

	cert1, err := a1.Issue(context.Background(), sampleResult())
	require.NoError(t, err)

	a2, err := Load(nil, cfg)
	require.NoError(t, err)
	require.Equal(t, a1.Issuer().PublicKeyOpenSSH, a2.Issuer().PublicKeyOpenSSH)

	cert2, err := a2.Issue(context.Background(), sampleResult())
	require.NoError(t, err)
	require.NotEqual(t, cert1.CertID, cert2.CertID)

	require.NoError(t, a2.Verify(*cert1))
}

func TestLoadAbortsOnPartialKeypair(t *testing.T) {
	cfg := testConfig(t)
	dir, err := cfg.Keys.Issuer.DirPath, os.MkdirAll(cfg.Keys.Issuer.DirPath, 0700)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, privateKeyFile), []byte("not a real key"), 0600))

	_, err = Load(nil, cfg)
	require.Error(t, err)
}

func TestCounterMonotonicAcrossReload(t *testing.T) {
	cfg := testConfig(t)
	a1, err := Load(nil, cfg)
	require.NoError(t, err)
	_, err = a1.Issue(context.Background(), sampleResult())
	require.NoError(t, err)
	_, err = a1.Issue(context.Background(), sampleResult())
	require.NoError(t, err)
	require.EqualValues(t, 2, a1.Issuer().CertificateCounter)

	a2, err := Load(nil, cfg)
	require.NoError(t, err)
	require.EqualValues(t, 2, a2.Issuer().CertificateCounter)
}

func TestComplianceClaimsOmittedWhenSimulated(t *testing.T) {
	a, err := Load(nil, testConfig(t))
	require.NoError(t, err)

	result := sampleResult()
	result.Simulated = true
	cert, err := a.Issue(context.Background(), result)
	require.NoError(t, err)
	require.Len(t, cert.ComplianceClaims, 1)
	require.Contains(t, cert.ComplianceClaims[0], "simulation only")
}
