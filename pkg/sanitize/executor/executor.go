// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/internal/events"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/pattern"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

const (
	maxWriteAttempts = 3
	backoffBase      = 50 * time.Millisecond

	// progressGranularity is the minimum fraction of a step's total
	// bytes between two progress emissions (spec.md section 4.4's
	// "at least every 1%").
	progressGranularity = 0.01
)

// Executor runs one software-overwrite pass at a time per device,
// reading buffers from a pattern.Source and writing them in
// sector-aligned chunks. It refuses a second concurrent pass on the
// same device path.
type Executor struct {
	logger logger.Logger
	bus    *events.Bus

	chunkBytes int

	mu     sync.Mutex
	active map[string]struct{}
}

// NewExecutor builds an Executor. chunkBytes is the I/O buffer size;
// it falls back to types.DefaultPassBufferSize when non-positive.
func NewExecutor(l logger.Logger, bus *events.Bus, chunkBytes int) *Executor {
	if chunkBytes <= 0 {
		chunkBytes = types.DefaultPassBufferSize
	}
	return &Executor{
		logger:     l,
		bus:        bus,
		chunkBytes: chunkBytes,
		active:     make(map[string]struct{}),
	}
}

// PassRequest describes one overwrite pass to run.
type PassRequest struct {
	JobID      string
	DevicePath string
	Step       types.PatternStep
	RangeStart int64
	RangeEnd   int64 // exclusive

	StepIndex       int
	StepCount       int
	PassIndexInStep int
	PassCountInStep int

	// Cancel is checked at every chunk boundary; a non-nil, non-zero
	// value aborts the pass with ExecutorCancelled.
	Cancel *atomic.Bool
}

// RunPass writes src's pattern across [RangeStart, RangeEnd) of
// DevicePath, syncing once at the end. It returns bytes actually
// written even on error, so callers can record a partial StepOutcome.
func (e *Executor) RunPass(ctx context.Context, src *pattern.Source, req PassRequest) (int64, error) {
	if req.RangeEnd < req.RangeStart {
		return 0, errors.New(errors.ExecutorOutOfRange, "range end precedes range start").
			WithMetadata("device", req.DevicePath)
	}

	if err := e.acquire(req.DevicePath); err != nil {
		return 0, err
	}
	defer e.release(req.DevicePath)

	dev, err := openDevice(req.DevicePath)
	if err != nil {
		return 0, err
	}
	defer dev.close()

	if _, err := dev.f.Seek(req.RangeStart, 0); err != nil {
		return 0, errors.Wrap(err, errors.ExecutorOutOfRange).WithMetadata("device", req.DevicePath)
	}

	total := req.RangeEnd - req.RangeStart
	buf := make([]byte, e.chunkBytes)

	var written int64
	var lastEmitted int64
	started := time.Now()

	for written < total {
		if req.Cancel != nil && req.Cancel.Load() {
			return written, errors.New(errors.ExecutorCancelled, "pass cancelled by caller").
				WithMetadata("device", req.DevicePath)
		}
		select {
		case <-ctx.Done():
			return written, errors.New(errors.ExecutorCancelled, "pass cancelled: "+ctx.Err().Error()).
				WithMetadata("device", req.DevicePath)
		default:
		}

		n := int64(len(buf))
		if remaining := total - written; remaining < n {
			n = remaining
		}
		chunk := buf[:n]

		if err := src.Fill(req.Step, chunk); err != nil {
			return written, err
		}

		if err := e.writeWithRetry(dev, chunk); err != nil {
			return written, err
		}

		written += n

		if total == 0 || float64(written-lastEmitted)/float64(total) >= progressGranularity || written == total {
			e.emitProgress(req, written, total, started)
			lastEmitted = written
		}
	}

	if err := dev.flush(); err != nil {
		return written, err
	}
	return written, nil
}

// writeWithRetry writes chunk at the file's current offset, retrying
// short/transient writes with exponential backoff before giving up.
func (e *Executor) writeWithRetry(dev *deviceHandle, chunk []byte) error {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoffBase * time.Duration(1<<uint(attempt-1)))
		}
		n, err := dev.f.Write(chunk)
		if err == nil && n == len(chunk) {
			return nil
		}
		if err == nil {
			lastErr = errors.New(errors.ExecutorWriteError, "short write").
				WithMetadata("device", dev.path)
		} else {
			lastErr = errors.Wrap(err, errors.ExecutorWriteError).WithMetadata("device", dev.path)
		}
		e.logger.Debug("pass write attempt failed, retrying", "device", dev.path, "attempt", attempt+1)
	}
	return lastErr
}

func (e *Executor) emitProgress(req PassRequest, bytesDone, bytesTotal int64, started time.Time) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		JobID:     req.JobID,
		Category:  events.CategoryProgress,
		Timestamp: time.Now(),
		Payload: types.Progress{
			JobID:           req.JobID,
			StepIndex:       req.StepIndex,
			StepCount:       req.StepCount,
			PassIndexInStep: req.PassIndexInStep,
			PassCountInStep: req.PassCountInStep,
			BytesDone:       req.RangeStart + bytesDone,
			BytesTotal:      bytesTotal,
			StartedAt:       started,
		},
	})
}

func (e *Executor) acquire(devicePath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[devicePath]; busy {
		return errors.New(errors.ExecutorConcurrentPass, "a pass is already running on this device").
			WithMetadata("device", devicePath)
	}
	e.active[devicePath] = struct{}{}
	return nil
}

func (e *Executor) release(devicePath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, devicePath)
}
