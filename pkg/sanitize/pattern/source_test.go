// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package pattern

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

func TestFillFixed(t *testing.T) {
	src := NewSource(16)
	buf := make([]byte, 4096)
	require.NoError(t, src.Fill(types.Fixed(0xAB), buf))
	for _, b := range buf {
		require.Equal(t, byte(0xAB), b)
	}
}

func TestFillAlternating(t *testing.T) {
	src := NewSource(16)
	buf := make([]byte, 8)
	require.NoError(t, src.Fill(types.Alternating(0x00, 0xFF), buf))
	require.Equal(t, []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF}, buf)
}

func TestFillRandomNotAllZerosOrOnes(t *testing.T) {
	src := NewSource(16)
	buf := make([]byte, 4096)
	require.NoError(t, src.Fill(types.Random(), buf))

	require.False(t, bytes.Equal(buf, make([]byte, len(buf))))
	allOnes := bytes.Repeat([]byte{0xFF}, len(buf))
	require.False(t, bytes.Equal(buf, allOnes))
}

func TestFillRandomProducesIndependentBuffers(t *testing.T) {
	src := NewSource(16)
	a := make([]byte, 4096)
	b := make([]byte, 4096)
	require.NoError(t, src.Fill(types.Random(), a))
	require.NoError(t, src.Fill(types.Random(), b))
	require.False(t, bytes.Equal(a, b))
}

func TestFillRejectsEmptyBuffer(t *testing.T) {
	src := NewSource(16)
	err := src.Fill(types.Fixed(0x00), nil)
	require.Error(t, err)
}

func TestRegenIntervalClampedToFloor(t *testing.T) {
	src := NewSource(1)
	require.Equal(t, int64(types.MinPatternRegenIntervalMiB)*1024*1024, src.RegenIntervalBytes())
}
