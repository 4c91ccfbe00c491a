// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/pattern"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

func makeBackingFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loopback.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(size)))
	require.NoError(t, f.Close())
	return path
}

func TestRunPassWritesFixedPatternAcrossRange(t *testing.T) {
	path := makeBackingFile(t, 1<<20)
	e := NewExecutor(nil, nil, 64*1024)
	src := pattern.NewSource(16)

	req := PassRequest{
		JobID:      "job-1",
		DevicePath: path,
		Step:       types.Fixed(0xAB),
		RangeStart: 0,
		RangeEnd:   1 << 20,
	}
	n, err := e.RunPass(context.Background(), src, req)
	require.NoError(t, err)
	require.Equal(t, int64(1<<20), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, b := range data {
		require.Equal(t, byte(0xAB), b)
	}
}

func TestRunPassRespectsRangeBounds(t *testing.T) {
	path := makeBackingFile(t, 4096)
	e := NewExecutor(nil, nil, 1024)
	src := pattern.NewSource(16)

	req := PassRequest{
		JobID:      "job-2",
		DevicePath: path,
		Step:       types.Fixed(0xFF),
		RangeStart: 1024,
		RangeEnd:   2048,
	}
	n, err := e.RunPass(context.Background(), src, req)
	require.NoError(t, err)
	require.Equal(t, int64(1024), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for i := 0; i < 1024; i++ {
		require.Equal(t, byte(0), data[i])
	}
	for i := 1024; i < 2048; i++ {
		require.Equal(t, byte(0xFF), data[i])
	}
	for i := 2048; i < 4096; i++ {
		require.Equal(t, byte(0), data[i])
	}
}

func TestRunPassRejectsConcurrentPassOnSameDevice(t *testing.T) {
	path := makeBackingFile(t, 4096)
	e := NewExecutor(nil, nil, 512)
	require.NoError(t, e.acquire(path))
	defer e.release(path)

	src := pattern.NewSource(16)
	_, err := e.RunPass(context.Background(), src, PassRequest{
		JobID: "job-3", DevicePath: path, Step: types.Fixed(0x00),
		RangeStart: 0, RangeEnd: 4096,
	})
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.ExecutorConcurrentPass, code)
}

func TestRunPassHonorsCancelFlag(t *testing.T) {
	path := makeBackingFile(t, 1<<20)
	e := NewExecutor(nil, nil, 4096)
	src := pattern.NewSource(16)

	cancel := &atomic.Bool{}
	cancel.Store(true)

	_, err := e.RunPass(context.Background(), src, PassRequest{
		JobID: "job-4", DevicePath: path, Step: types.Fixed(0x11),
		RangeStart: 0, RangeEnd: 1 << 20, Cancel: cancel,
	})
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.ExecutorCancelled, code)
}

func TestRunPassRejectsInvertedRange(t *testing.T) {
	path := makeBackingFile(t, 4096)
	e := NewExecutor(nil, nil, 512)
	src := pattern.NewSource(16)

	_, err := e.RunPass(context.Background(), src, PassRequest{
		JobID: "job-5", DevicePath: path, Step: types.Fixed(0x00),
		RangeStart: 2048, RangeEnd: 1024,
	})
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.ExecutorOutOfRange, code)
}
