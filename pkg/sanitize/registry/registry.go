// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package registry implements the Operation Registry (C10): an
// in-process map of job id to current status/result, read-mostly
// locked per spec.md section 5.
package registry

import (
	"sync"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// Registry holds every job's current JobSnapshot. Terminal snapshots
// are never mutated again; Create/Transition/SetResult enforce that.
type Registry struct {
	logger logger.Logger

	mu   sync.RWMutex
	jobs map[string]*types.JobSnapshot
}

// New builds an empty Registry.
func New(l logger.Logger) *Registry {
	return &Registry{
		logger: l,
		jobs:   make(map[string]*types.JobSnapshot),
	}
}

// Create registers a new job in JobPending state.
func (r *Registry) Create(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[jobID]; exists {
		return errors.New(errors.RegistryDuplicateJob, "job id already registered").WithMetadata("job_id", jobID)
	}
	r.jobs[jobID] = &types.JobSnapshot{JobID: jobID, State: types.JobPending}
	return nil
}

// Transition moves jobID to newState. A job already in a terminal
// state can never be transitioned again.
func (r *Registry) Transition(jobID string, newState types.JobState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.jobs[jobID]
	if !ok {
		return errors.New(errors.RegistryJobNotFound, "job not found").WithMetadata("job_id", jobID)
	}
	if snap.State.IsTerminal() {
		return errors.New(errors.RegistryTerminalStateMutation, "cannot transition a terminal job").WithMetadata("job_id", jobID)
	}
	r.jobs[jobID] = &types.JobSnapshot{JobID: jobID, State: newState, Result: snap.Result}
	return nil
}

// SetResult freezes jobID's final OperationResult and moves it to a
// terminal state in one step.
func (r *Registry) SetResult(jobID string, result types.OperationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.jobs[jobID]
	if !ok {
		return errors.New(errors.RegistryJobNotFound, "job not found").WithMetadata("job_id", jobID)
	}
	if snap.State.IsTerminal() {
		return errors.New(errors.RegistryTerminalStateMutation, "job already in a terminal state").WithMetadata("job_id", jobID)
	}

	var state types.JobState
	switch result.Status {
	case types.StatusCompleted:
		state = types.JobCompleted
	case types.StatusFailed:
		state = types.JobFailed
	case types.StatusAborted:
		state = types.JobAborted
	default:
		return errors.New(errors.ControllerInternalError, "unrecognized terminal OperationResult.Status").WithMetadata("job_id", jobID)
	}

	resultCopy := result
	r.jobs[jobID] = &types.JobSnapshot{JobID: jobID, State: state, Result: &resultCopy}
	return nil
}

// Get returns jobID's current snapshot.
func (r *Registry) Get(jobID string) (types.JobSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.jobs[jobID]
	if !ok {
		return types.JobSnapshot{}, errors.New(errors.RegistryJobNotFound, "job not found").WithMetadata("job_id", jobID)
	}
	return *snap, nil
}

// List returns a snapshot of every known job, for diagnostics.
func (r *Registry) List() []types.JobSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.JobSnapshot, 0, len(r.jobs))
	for _, snap := range r.jobs {
		out = append(out, *snap)
	}
	return out
}
