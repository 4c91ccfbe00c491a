// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

func TestCreateAndGet(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create("job-1"))
	snap, err := r.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, types.JobPending, snap.State)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create("job-1"))
	err := r.Create("job-1")
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.RegistryDuplicateJob, code)
}

func TestTransitionRejectsAfterTerminal(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create("job-1"))
	require.NoError(t, r.SetResult("job-1", types.OperationResult{JobID: "job-1", Status: types.StatusCompleted}))

	err := r.Transition("job-1", types.JobRunning)
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.RegistryTerminalStateMutation, code)
}

func TestSetResultFreezesTerminalState(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create("job-1"))
	require.NoError(t, r.Transition("job-1", types.JobRunning))
	require.NoError(t, r.SetResult("job-1", types.OperationResult{JobID: "job-1", Status: types.StatusAborted}))

	snap, err := r.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, types.JobAborted, snap.State)
	require.NotNil(t, snap.Result)

	err = r.SetResult("job-1", types.OperationResult{JobID: "job-1", Status: types.StatusCompleted})
	require.Error(t, err)
}

func TestGetUnknownJobFails(t *testing.T) {
	r := New(nil)
	_, err := r.Get("missing")
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.RegistryJobNotFound, code)
}

func TestListReturnsAllJobs(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create("job-1"))
	require.NoError(t, r.Create("job-2"))
	require.Len(t, r.List(), 2)
}
