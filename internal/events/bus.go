// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package events implements the in-process progress broadcast used by
// the operation controller to fan a job's progress events out to any
// number of subscribers (a CLI progress bar, a status poller, a test).
// There is no wire transport here: everything lives in one process.
package events

import (
	"sync"
	"time"

	"github.com/stratastor/logger"
)

// Category distinguishes a terminal, must-not-be-missed event (job
// reached Completed/Failed/Aborted) from an intermediate progress tick
// that's fine to drop under backpressure.
type Category string

const (
	CategoryProgress Category = "progress"
	CategoryTerminal Category = "terminal"
)

// Event is a single progress update published for a job.
type Event struct {
	JobID     string
	Category  Category
	Timestamp time.Time
	Payload   interface{}
}

const subscriberBuffer = 64

// terminalSendTimeout bounds how long a blocked subscriber can delay
// delivery of a terminal event before the bus gives up on it.
const terminalSendTimeout = 2 * time.Second

// Bus fans out Events published for a job to every subscriber
// registered for that job. Intermediate events are dropped if a
// subscriber's channel is full; terminal events are retried briefly so
// a slow-draining subscriber still observes the job's final state.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	logger      logger.Logger
}

// NewBus creates an empty Bus.
func NewBus(l logger.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]chan Event),
		logger:      l,
	}
}

// Subscribe registers a new listener for jobID's events and returns the
// channel it will receive on. Unsubscribe must be called to release it.
func (b *Bus) Subscribe(jobID string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[jobID] = append(b.subscribers[jobID], ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from jobID's subscriber list and closes it.
func (b *Bus) Unsubscribe(jobID string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[jobID]
	for i, c := range subs {
		if c == ch {
			subs = append(subs[:i], subs[i+1:]...)
			close(c)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subscribers, jobID)
	} else {
		b.subscribers[jobID] = subs
	}
}

// Publish broadcasts event to every subscriber of event.JobID.
// Progress events are delivered best-effort: a full subscriber channel
// causes that tick to be dropped for that subscriber. Terminal events
// are delivered with a short blocking retry so a job's final status is
// never silently lost.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := append([]chan Event(nil), b.subscribers[event.JobID]...)
	b.mu.RUnlock()

	for _, ch := range subs {
		if event.Category == CategoryTerminal {
			b.sendTerminal(ch, event)
			continue
		}
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropping progress event for slow subscriber", "job_id", event.JobID)
		}
	}
}

func (b *Bus) sendTerminal(ch chan Event, event Event) {
	select {
	case ch <- event:
		return
	default:
	}

	timer := time.NewTimer(terminalSendTimeout)
	defer timer.Stop()
	select {
	case ch <- event:
	case <-timer.C:
		b.logger.Warn("terminal event delivery timed out", "job_id", event.JobID)
	}
}

// CloseJob unsubscribes and closes every channel registered for jobID,
// called once a job's terminal event has been published and no further
// events will ever be emitted for it.
func (b *Bus) CloseJob(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[jobID] {
		close(ch)
	}
	delete(b.subscribers, jobID)
}
