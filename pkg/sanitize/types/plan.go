// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// PlanStep is one step of a Plan: a Method to apply, its estimated
// cost, and a human-readable description (rendered via
// internal/command.DisplayCommand for hardware steps, or a plain
// sentence for software-overwrite/guidance steps).
type PlanStep struct {
	Method      Method        `json:"method"`
	EstBytes    int64         `json:"est_bytes"`
	EstDuration time.Duration `json:"est_duration"`
	Description string        `json:"description"`

	// RangeStart/RangeEnd bound the sector-aligned byte range this
	// step applies to; whole-device hardware steps carry [0, capacity),
	// and RemoveHpa and guidance steps leave both zero.
	RangeStart int64 `json:"range_start,omitempty"`
	RangeEnd   int64 `json:"range_end,omitempty"`
}

// Plan is the ordered sequence of steps the Planner (C6) produces for
// a device and requested compliance level.
type Plan struct {
	DevicePath string          `json:"device_path"`
	Level      ComplianceLevel `json:"level"`
	Steps      []PlanStep      `json:"steps"`

	// Warnings accumulates non-fatal planning notes, e.g. a suspected
	// DCO or a security-frozen heads-up.
	Warnings []string `json:"warnings,omitempty"`
}

// IsEmpty reports whether the plan has no steps (the zero-length
// device-range boundary case from spec.md section 8).
func (p Plan) IsEmpty() bool { return len(p.Steps) == 0 }

// Progress is a single point-in-time update for one job. Within a
// step/pass, BytesDone is non-decreasing; across steps, StepIndex is
// non-decreasing.
type Progress struct {
	JobID            string    `json:"job_id"`
	StepIndex        int       `json:"step_index"`
	StepCount        int       `json:"step_count"`
	PassIndexInStep  int       `json:"pass_index_in_step"`
	PassCountInStep  int       `json:"pass_count_in_step"`
	BytesDone        int64     `json:"bytes_done"`
	BytesTotal       int64     `json:"bytes_total"`
	StartedAt        time.Time `json:"started_at"`
}

// StepOutcome records what actually happened executing one PlanStep.
type StepOutcome struct {
	Method     Method        `json:"method"`
	Started    time.Time     `json:"started_at"`
	Ended      time.Time     `json:"ended_at"`
	BytesDone  int64         `json:"bytes_done"`
	Simulated  bool          `json:"simulated"`
	Succeeded  bool          `json:"succeeded"`
	FailureKind ErrorKind    `json:"failure_kind,omitempty"`
	Detail      string       `json:"detail,omitempty"`
}

// VerifierOutcome is C7's verdict for one job, including the
// supplemented sample-fraction field ("confidence level").
type VerifierOutcome struct {
	Samples       int          `json:"samples"`
	Method        VerifyMethod `json:"method"`
	Passed        bool         `json:"passed"`
	FailedOffsets []int64      `json:"failed_offsets,omitempty"`

	// SampleFraction is samples*sample_size/user_capacity_bytes,
	// surfaced as the certificate's declared confidence level.
	SampleFraction float64 `json:"sample_fraction"`

	// Attempted is false when verification was skipped entirely (e.g.
	// a failed job where opts.VerifyAfter was false).
	Attempted bool `json:"attempted"`
}

// JobStatus classifies the Controller's terminal or in-flight job state.
type JobStatus string

const (
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusAborted   JobStatus = "ABORTED"
)

// OperationResult is the final, frozen record of one job.
type OperationResult struct {
	JobID           string          `json:"job_id"`
	Facts           DriveFacts      `json:"facts"`
	Plan            Plan            `json:"plan"`
	StepOutcomes    []StepOutcome   `json:"step_outcomes"`
	VerifierOutcome VerifierOutcome `json:"verifier_outcome"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         time.Time       `json:"ended_at"`
	Status          JobStatus       `json:"status"`
	FailureKind     ErrorKind       `json:"failure_kind,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	Simulated       bool            `json:"simulated"`
}

// JobSnapshot is the Controller's status() response: current state
// plus the result once terminal.
type JobSnapshot struct {
	JobID  string    `json:"job_id"`
	State  JobState  `json:"state"`
	Result *OperationResult `json:"result,omitempty"`
}
