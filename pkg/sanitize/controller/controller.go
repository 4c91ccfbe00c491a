// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package controller implements the Operation Controller (C8): the
// top-level orchestrator that wires every other component together
// and drives one job through its full lifecycle, per spec.md section
// 4.8's state machine (Pending -> Planning -> Running -> Verifying ->
// Certifying -> Completed/Failed/Aborted).
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/internal/common"
	"github.com/tinkershack/sanitor/internal/events"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/certify"
	"github.com/tinkershack/sanitor/pkg/sanitize/executor"
	"github.com/tinkershack/sanitor/pkg/sanitize/hidden"
	"github.com/tinkershack/sanitor/pkg/sanitize/hwsanitize"
	"github.com/tinkershack/sanitor/pkg/sanitize/pattern"
	"github.com/tinkershack/sanitor/pkg/sanitize/planner"
	"github.com/tinkershack/sanitor/pkg/sanitize/probe"
	"github.com/tinkershack/sanitor/pkg/sanitize/registry"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
	"github.com/tinkershack/sanitor/pkg/sanitize/verify"
)

// Options carries the per-job knobs a caller supplies to Start.
type Options struct {
	// AllowRealDevices requests that hardware-sanitize and
	// pass-executor steps actually touch the device. It is AND-ed
	// against the process-wide Sanitize.AllowRealDevices config flag:
	// a caller can never request real I/O the configuration forbids.
	AllowRealDevices bool

	// VerifyAfter runs the Verifier once every plan step succeeds.
	// Ignored for Destroy-level plans, which never perform I/O.
	VerifyAfter bool

	// PatternOverride selects a specific software-overwrite program
	// instead of the Planner's default table entry for the drive kind.
	PatternOverride *types.PatternProgram

	// CertifyOnFailure requests a certificate even for a job that ends
	// Failed, documenting what was attempted. Off by default: per
	// spec.md's certification scenarios, a failed job is not certified
	// unless the operator explicitly asks for a record of the attempt.
	CertifyOnFailure bool
}

// deviceProber is the narrow surface Controller needs from the Device
// Probe; satisfied by *probe.Prober. Declared here so tests can supply
// a fake that doesn't shell out to smartctl/lsblk.
type deviceProber interface {
	Probe(ctx context.Context, path string) (types.DriveFacts, error)
}

// Controller orchestrates the Device Probe, Hidden-Region Manager,
// Pattern Source, Pass Executor, Hardware Sanitize Driver, Planner,
// Verifier, Operation Registry, and Certificate Authority into one
// job lifecycle per device.
type Controller struct {
	logger logger.Logger
	bus    *events.Bus

	registry  *registry.Registry
	prober    deviceProber
	proberSvc *probe.Prober // non-nil only when built via New; used for Start/Stop
	hidden    *hidden.Manager
	pattern   *pattern.Source
	executor  *executor.Executor
	hwdriver  *hwsanitize.Driver
	planner   *planner.Planner
	verifier  *verify.Verifier
	authority *certify.Authority

	strictMode              bool
	allowRealDevicesDefault bool

	sched           gocron.Scheduler
	reaperInterval  time.Duration
	jobStuckTimeout time.Duration

	mu         sync.Mutex
	cancels    map[string]*atomic.Bool
	startTimes map[string]time.Time

	certsMu sync.Mutex
	certs   map[string]*types.Certificate
}

// New wires a Controller from the engine configuration. It loads (or
// creates) the Certificate Authority's issuer identity, which is why
// New can fail: a corrupted issuer key directory aborts startup
// rather than silently operating without certification.
func New(l logger.Logger, cfg *config.Config) (*Controller, error) {
	prober, err := probe.NewProber(l, cfg)
	if err != nil {
		return nil, err
	}
	authority, err := certify.Load(l, cfg)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus(l)

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.ControllerInternalError).WithMetadata("operation", "create_scheduler")
	}

	reaperInterval := 5 * time.Minute
	if d, err := time.ParseDuration(cfg.Sanitize.ReaperInterval); err == nil && d > 0 {
		reaperInterval = d
	}
	jobStuckTimeout := 4 * time.Hour
	if d, err := time.ParseDuration(cfg.Sanitize.StuckJobTimeout); err == nil && d > 0 {
		jobStuckTimeout = d
	}

	return &Controller{
		logger:    l,
		bus:       bus,
		registry:  registry.New(l),
		prober:    prober,
		proberSvc: prober,
		hidden:    hidden.NewManager(l, cfg),
		pattern:   pattern.NewSource(cfg.Sanitize.PatternRegenIntervalMiB),
		executor:  executor.NewExecutor(l, bus, cfg.Sanitize.PassBufferSizeBytes),
		hwdriver:  hwsanitize.NewDriver(l, cfg),
		planner:   planner.NewPlanner(l, cfg),
		verifier:  verify.NewVerifier(l, cfg),
		authority: authority,

		strictMode:              cfg.Verification.StrictMode,
		allowRealDevicesDefault: cfg.Sanitize.AllowRealDevices,

		sched:           sched,
		reaperInterval:  reaperInterval,
		jobStuckTimeout: jobStuckTimeout,

		cancels:    make(map[string]*atomic.Bool),
		startTimes: make(map[string]time.Time),
		certs:      make(map[string]*types.Certificate),
	}, nil
}

// StartBackgroundTasks begins the Device Probe's periodic rescan and
// the stuck-job reaper. Only meaningful when the Controller was built
// via New.
func (c *Controller) StartBackgroundTasks(ctx context.Context) error {
	if c.proberSvc != nil {
		if err := c.proberSvc.Start(ctx); err != nil {
			return err
		}
	}
	if c.sched == nil {
		return nil
	}

	_, err := c.sched.NewJob(
		gocron.DurationJob(c.reaperInterval),
		gocron.NewTask(func() { c.reapStuckJobs() }),
		gocron.WithName("stuck_job_reaper"),
	)
	if err != nil {
		return errors.Wrap(err, errors.ControllerInternalError).WithMetadata("operation", "schedule_reaper")
	}
	c.sched.Start()
	return nil
}

// Stop halts background tasks.
func (c *Controller) Stop() error {
	if c.sched != nil {
		if err := c.sched.Shutdown(); err != nil {
			c.logger.Warn("failed to shut down controller scheduler", "err", err)
		}
	}
	if c.proberSvc == nil {
		return nil
	}
	return c.proberSvc.Stop()
}

// reapStuckJobs requests cooperative cancellation on every job that
// has run longer than jobStuckTimeout. It never force-terminates a
// job directly: cancellation is still observed at the same cooperative
// checkpoints run() already honors.
func (c *Controller) reapStuckJobs() {
	cutoff := time.Now().Add(-c.jobStuckTimeout)

	c.mu.Lock()
	var stuck []string
	for jobID, started := range c.startTimes {
		if started.Before(cutoff) {
			stuck = append(stuck, jobID)
		}
	}
	c.mu.Unlock()

	for _, jobID := range stuck {
		if c.Cancel(jobID) {
			c.logger.Warn("reaper requested cancellation of long-running job", "job_id", jobID)
		}
	}
}

// Start creates a job for devicePath at the requested compliance
// level and runs it asynchronously, returning its id immediately. Use
// SubscribeProgress or Status to observe it.
func (c *Controller) Start(ctx context.Context, devicePath string, level types.ComplianceLevel, opts Options) (string, error) {
	jobID := common.UUID7()
	if err := c.registry.Create(jobID); err != nil {
		return "", err
	}

	cancel := &atomic.Bool{}
	c.mu.Lock()
	c.cancels[jobID] = cancel
	c.startTimes[jobID] = time.Now()
	c.mu.Unlock()

	go c.run(ctx, jobID, devicePath, level, opts, cancel)

	return jobID, nil
}

// Cancel requests cooperative cancellation of jobID. It returns false
// if jobID is unknown or already in a terminal state.
func (c *Controller) Cancel(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.cancels[jobID]
	if !ok {
		return false
	}
	cancel.Store(true)
	return true
}

// Status returns jobID's current snapshot.
func (c *Controller) Status(jobID string) (types.JobSnapshot, error) {
	return c.registry.Get(jobID)
}

// GetResult returns jobID's frozen OperationResult. It errors if the
// job has not yet reached a terminal state.
func (c *Controller) GetResult(jobID string) (types.OperationResult, error) {
	snap, err := c.registry.Get(jobID)
	if err != nil {
		return types.OperationResult{}, err
	}
	if snap.Result == nil {
		return types.OperationResult{}, errors.New(errors.ControllerInvalidTransition, "job has not reached a terminal state").
			WithMetadata("job_id", jobID)
	}
	return *snap.Result, nil
}

// Certificate returns the certificate issued for jobID, if any.
func (c *Controller) Certificate(jobID string) (*types.Certificate, bool) {
	c.certsMu.Lock()
	defer c.certsMu.Unlock()
	cert, ok := c.certs[jobID]
	return cert, ok
}

// SubscribeProgress returns a channel of jobID's progress and terminal
// events, plus an unsubscribe function the caller must call once done
// reading.
func (c *Controller) SubscribeProgress(jobID string) (<-chan events.Event, func()) {
	ch := c.bus.Subscribe(jobID)
	return ch, func() { c.bus.Unsubscribe(jobID, ch) }
}

// run drives one job end to end. It never returns an error: every
// outcome, including internal faults, is recorded as the job's
// terminal OperationResult instead.
func (c *Controller) run(ctx context.Context, jobID, devicePath string, level types.ComplianceLevel, opts Options, cancel *atomic.Bool) {
	result := types.OperationResult{JobID: jobID, StartedAt: time.Now()}
	allowReal := opts.AllowRealDevices && c.allowRealDevicesDefault
	result.Simulated = !allowReal

	if cancel.Load() {
		result.Status = types.StatusAborted
		result.FailureKind = types.ErrCancelled
		result.Warnings = []string{"job cancelled before any work began"}
		c.finalize(ctx, jobID, result, opts)
		return
	}

	if err := c.registry.Transition(jobID, types.JobPlanning); err != nil {
		c.logger.Error("failed to transition job to planning", "job_id", jobID, "err", err)
		return
	}

	facts, err := c.prober.Probe(ctx, devicePath)
	if err != nil {
		result.Status = types.StatusFailed
		result.FailureKind = types.ErrDeviceNotFound
		c.finalize(ctx, jobID, result, opts)
		return
	}
	facts = c.hidden.Detect(ctx, facts)
	result.Facts = facts

	if cancel.Load() {
		result.Status = types.StatusAborted
		result.FailureKind = types.ErrCancelled
		result.Warnings = []string{"job cancelled during planning"}
		c.finalize(ctx, jobID, result, opts)
		return
	}

	plan, err := c.planner.Plan(facts, level, planner.Options{PatternOverride: opts.PatternOverride})
	if err != nil {
		result.Status = types.StatusFailed
		result.FailureKind = classifyPlannerErr(err)
		c.finalize(ctx, jobID, result, opts)
		return
	}
	result.Plan = plan

	if plan.IsEmpty() {
		result.Status = types.StatusCompleted
		result.Warnings = []string{"zero-length device: nothing to sanitize"}
		c.finalize(ctx, jobID, result, opts)
		return
	}

	if err := c.registry.Transition(jobID, types.JobRunning); err != nil {
		c.logger.Error("failed to transition job to running", "job_id", jobID, "err", err)
		return
	}

	var (
		warnings             []string
		lastSoftwareStep     *types.PatternStep
		lastStepWasHardware  bool
		jobFailed            bool
		failureKind          types.ErrorKind
	)

	for i, step := range plan.Steps {
		if cancel.Load() {
			result.Status = types.StatusAborted
			result.FailureKind = types.ErrCancelled
			result.Warnings = warnings
			c.finalize(ctx, jobID, result, opts)
			return
		}

		switch step.Method.Kind {
		case types.MethodRemoveHPA:
			if !allowReal {
				result.StepOutcomes = append(result.StepOutcomes, types.StepOutcome{
					Method: step.Method, Started: time.Now(), Ended: time.Now(),
					Simulated: true, Succeeded: true,
				})
				break
			}
			newFacts, outcome, warn := c.runHpaRemoval(ctx, facts)
			facts = newFacts
			result.Facts = facts
			result.StepOutcomes = append(result.StepOutcomes, outcome)
			warnings = append(warnings, warn...)

		case types.MethodSoftwareOverwrite:
			outcome, stepErr := c.runSoftwareOverwrite(ctx, jobID, facts, step, i, len(plan.Steps), allowReal, cancel)
			result.StepOutcomes = append(result.StepOutcomes, outcome)
			if stepErr != nil {
				jobFailed = true
				failureKind = outcome.FailureKind
				break
			}
			last := step.Method.PatternProgram.Steps[len(step.Method.PatternProgram.Steps)-1]
			lastSoftwareStep = &last
			lastStepWasHardware = false

		case types.MethodAtaSecureErase, types.MethodNvmeSanitize, types.MethodCryptoErase:
			outcome, stepErr := c.runHardwareStep(ctx, facts, step, allowReal)
			result.StepOutcomes = append(result.StepOutcomes, outcome)
			if stepErr != nil {
				jobFailed = true
				failureKind = outcome.FailureKind
				break
			}
			lastStepWasHardware = true
			lastSoftwareStep = nil

		case types.MethodPhysicalDestructionGuidance:
			result.StepOutcomes = append(result.StepOutcomes, types.StepOutcome{
				Method: step.Method, Started: time.Now(), Ended: time.Now(),
				Simulated: true, Succeeded: true, Detail: step.Description,
			})

		default:
			jobFailed = true
			failureKind = types.ErrInternalError
		}

		if jobFailed {
			break
		}
	}

	if jobFailed {
		result.Status = types.StatusFailed
		result.FailureKind = failureKind
		result.Warnings = warnings
		c.finalize(ctx, jobID, result, opts)
		return
	}

	if cancel.Load() {
		result.Status = types.StatusAborted
		result.FailureKind = types.ErrCancelled
		result.Warnings = warnings
		c.finalize(ctx, jobID, result, opts)
		return
	}

	if opts.VerifyAfter && level != types.LevelDestroy {
		if err := c.registry.Transition(jobID, types.JobVerifying); err != nil {
			c.logger.Error("failed to transition job to verifying", "job_id", jobID, "err", err)
			return
		}

		var lastStep types.PatternStep
		if lastSoftwareStep != nil {
			lastStep = *lastSoftwareStep
		}

		outcome, err := c.verifier.Verify(ctx, facts, lastStep, lastStepWasHardware, false)
		if err != nil {
			result.Status = types.StatusFailed
			result.FailureKind = types.ErrReadError
			result.Warnings = warnings
			c.finalize(ctx, jobID, result, opts)
			return
		}
		result.VerifierOutcome = outcome

		if !outcome.Passed {
			warnings = append(warnings, "verification sampling found data inconsistent with the requested pattern")
			if c.strictMode {
				result.Status = types.StatusFailed
				result.FailureKind = types.ErrVerificationFailed
				result.Warnings = warnings
				c.finalize(ctx, jobID, result, opts)
				return
			}
		}
	}

	result.Status = types.StatusCompleted
	result.Warnings = warnings
	c.finalize(ctx, jobID, result, opts)
}

// finalize issues a certificate when the outcome warrants one, freezes
// result in the registry, publishes the terminal event, and releases
// jobID's bookkeeping.
func (c *Controller) finalize(ctx context.Context, jobID string, result types.OperationResult, opts Options) {
	result.EndedAt = time.Now()

	shouldCertify := result.Status == types.StatusCompleted ||
		(result.Status == types.StatusFailed && opts.CertifyOnFailure)

	if shouldCertify {
		if err := c.registry.Transition(jobID, types.JobCertifying); err != nil {
			c.logger.Warn("failed to transition job to certifying", "job_id", jobID, "err", err)
		}
		cert, err := c.authority.Issue(ctx, result)
		if err != nil {
			c.logger.Error("certificate issuance failed", "job_id", jobID, "err", err)
			result.Warnings = append(result.Warnings, "certificate issuance failed: "+err.Error())
		} else {
			c.certsMu.Lock()
			c.certs[jobID] = cert
			c.certsMu.Unlock()
		}
	}

	if err := c.registry.SetResult(jobID, result); err != nil {
		c.logger.Error("failed to record job result", "job_id", jobID, "err", err)
	}

	c.bus.Publish(events.Event{JobID: jobID, Category: events.CategoryTerminal, Timestamp: time.Now(), Payload: result})
	c.bus.CloseJob(jobID)

	c.mu.Lock()
	delete(c.cancels, jobID)
	delete(c.startTimes, jobID)
	c.mu.Unlock()
}

func (c *Controller) runHpaRemoval(ctx context.Context, facts types.DriveFacts) (types.DriveFacts, types.StepOutcome, []string) {
	started := time.Now()
	newFacts, err := c.hidden.RemoveHPA(ctx, facts)
	ended := time.Now()

	if err != nil {
		outcome := types.StepOutcome{
			Method: types.Method{Kind: types.MethodRemoveHPA}, Started: started, Ended: ended,
			Succeeded: false, FailureKind: types.ErrHpaRemovalFailed, Detail: err.Error(),
		}
		warning := "host protected area removal failed; residual hidden capacity remains unaddressed"
		return facts, outcome, []string{warning}
	}

	return newFacts, types.StepOutcome{
		Method: types.Method{Kind: types.MethodRemoveHPA}, Started: started, Ended: ended, Succeeded: true,
	}, nil
}

func (c *Controller) runSoftwareOverwrite(ctx context.Context, jobID string, facts types.DriveFacts, step types.PlanStep, stepIndex, stepCount int, allowReal bool, cancel *atomic.Bool) (types.StepOutcome, error) {
	started := time.Now()

	if !allowReal {
		c.logger.Info("simulating software overwrite", "device", facts.DevicePath, "program", step.Method.PatternProgram.Name)
		return types.StepOutcome{
			Method: step.Method, Started: started, Ended: time.Now(),
			BytesDone: step.EstBytes, Simulated: true, Succeeded: true,
		}, nil
	}

	passes := step.Method.PatternProgram.Steps
	var bytesDone int64
	for passIdx, patStep := range passes {
		n, err := c.executor.RunPass(ctx, c.pattern, executor.PassRequest{
			JobID:           jobID,
			DevicePath:      facts.DevicePath,
			Step:            patStep,
			RangeStart:      step.RangeStart,
			RangeEnd:        step.RangeEnd,
			StepIndex:       stepIndex,
			StepCount:       stepCount,
			PassIndexInStep: passIdx,
			PassCountInStep: len(passes),
			Cancel:          cancel,
		})
		bytesDone = n
		if err != nil {
			return types.StepOutcome{
				Method: step.Method, Started: started, Ended: time.Now(),
				BytesDone: bytesDone, Succeeded: false,
				FailureKind: classifyExecutorErr(err), Detail: err.Error(),
			}, err
		}
	}

	return types.StepOutcome{
		Method: step.Method, Started: started, Ended: time.Now(),
		BytesDone: bytesDone, Succeeded: true,
	}, nil
}

func (c *Controller) runHardwareStep(ctx context.Context, facts types.DriveFacts, step types.PlanStep, allowReal bool) (types.StepOutcome, error) {
	started := time.Now()
	simulated, err := c.hwdriver.Execute(ctx, facts, step.Method, allowReal)
	ended := time.Now()

	if err != nil {
		return types.StepOutcome{
			Method: step.Method, Started: started, Ended: ended, Simulated: simulated,
			Succeeded: false, FailureKind: classifyHardwareErr(err), Detail: err.Error(),
		}, err
	}
	return types.StepOutcome{
		Method: step.Method, Started: started, Ended: ended, Simulated: simulated,
		BytesDone: step.EstBytes, Succeeded: true,
	}, nil
}

func classifyPlannerErr(err error) types.ErrorKind {
	code, ok := errors.GetCode(err)
	if !ok {
		return types.ErrInternalError
	}
	switch code {
	case errors.PlannerSystemDeviceProtected:
		return types.ErrSystemDeviceProtected
	case errors.PlannerNoPurgeMethod:
		return types.ErrNoPurgeMethod
	default:
		return types.ErrInternalError
	}
}

func classifyExecutorErr(err error) types.ErrorKind {
	code, ok := errors.GetCode(err)
	if !ok {
		return types.ErrInternalError
	}
	switch code {
	case errors.ExecutorCancelled:
		return types.ErrCancelled
	case errors.ExecutorReadError:
		return types.ErrReadError
	default:
		return types.ErrWriteError
	}
}

func classifyHardwareErr(err error) types.ErrorKind {
	code, ok := errors.GetCode(err)
	if !ok {
		return types.ErrInternalError
	}
	switch code {
	case errors.HardwareSecurityFrozen:
		return types.ErrSecurityFrozen
	case errors.HardwareTimedOut:
		return types.ErrTimedOut
	default:
		return types.ErrCommandFailed
	}
}
