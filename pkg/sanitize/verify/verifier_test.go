// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

func testVerifier() *Verifier {
	cfg := &config.Config{}
	cfg.Verification.SampleBlockCount = 10
	return NewVerifier(nil, cfg)
}

func makeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loopback.img")
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

func TestVerifyFixedPatternPasses(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 1<<20)
	path := makeFile(t, data)
	v := testVerifier()

	facts := types.DriveFacts{DevicePath: path, UserCapacityBytes: int64(len(data)), SectorSizeBytes: 512}
	outcome, err := v.Verify(context.Background(), facts, types.Fixed(0xAB), false, false)
	require.NoError(t, err)
	require.True(t, outcome.Passed)
	require.Equal(t, 10, outcome.Samples)
}

func TestVerifyFixedPatternFailsOnResidue(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, 1<<20)
	copy(data[400000:600000], bytes.Repeat([]byte{0xEE}, 200000))
	path := makeFile(t, data)
	v := testVerifier()

	facts := types.DriveFacts{DevicePath: path, UserCapacityBytes: int64(len(data)), SectorSizeBytes: 512}

	var outcome types.VerifierOutcome
	var err error
	for i := 0; i < 20; i++ {
		outcome, err = v.Verify(context.Background(), facts, types.Fixed(0x00), false, false)
		require.NoError(t, err)
		if !outcome.Passed {
			break
		}
	}
	require.False(t, outcome.Passed)
}

func TestVerifyRandomFailsOnAllZeroBlock(t *testing.T) {
	data := make([]byte, 1<<20)
	path := makeFile(t, data)
	v := testVerifier()

	facts := types.DriveFacts{DevicePath: path, UserCapacityBytes: int64(len(data)), SectorSizeBytes: 512}
	outcome, err := v.Verify(context.Background(), facts, types.Random(), false, false)
	require.NoError(t, err)
	require.False(t, outcome.Passed)
}

func TestVerifyRandomPassesOnGenuineRandomData(t *testing.T) {
	data := make([]byte, 1<<20)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := makeFile(t, data)
	v := testVerifier()

	facts := types.DriveFacts{DevicePath: path, UserCapacityBytes: int64(len(data)), SectorSizeBytes: 512}
	outcome, err := v.Verify(context.Background(), facts, types.Random(), false, false)
	require.NoError(t, err)
	require.True(t, outcome.Passed)
}

func TestVerifySelfVerifyingHardware(t *testing.T) {
	v := testVerifier()
	facts := types.DriveFacts{DevicePath: "/dev/nvme0n1", UserCapacityBytes: 1 << 20}

	outcome, err := v.Verify(context.Background(), facts, types.PatternStep{}, true, false)
	require.NoError(t, err)
	require.True(t, outcome.Passed)
	require.Equal(t, types.VerifyMethodSelfVerify, outcome.Method)

	outcome, err = v.Verify(context.Background(), facts, types.PatternStep{}, true, true)
	require.NoError(t, err)
	require.False(t, outcome.Passed)
}

func TestVerifyZeroLengthDeviceIsVacuouslyPassed(t *testing.T) {
	v := testVerifier()
	facts := types.DriveFacts{DevicePath: "/dev/null", UserCapacityBytes: 0}
	outcome, err := v.Verify(context.Background(), facts, types.Fixed(0x00), false, false)
	require.NoError(t, err)
	require.True(t, outcome.Passed)
	require.Zero(t, outcome.Samples)
}
