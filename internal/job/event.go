// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package job

import (
	"errors"
	"sync"
	"time"

	"github.com/ZSC714725/cutmanager/internal/ffmpeg/parse"
	"github.com/ZSC714725/cutmanager/internal/process"
	"github.com/ZSC714725/cutmanager/internal/task"
)

// EventType classifies job events
type EventType string

const (
	EventStageStarted   EventType = "stage_started"
	EventProgress       EventType = "progress"
	EventStageCompleted EventType = "stage_completed"
	EventSucceeded      EventType = "succeeded"
	EventFailed         EventType = "failed"
	EventCancelled      EventType = "cancelled"
)

// Event is one notification of a job. Seq starts at 1 and increases by one
// per event of the same job.
type Event struct {
	Seq      uint64           `json:"seq"`
	Time     time.Time        `json:"time"`
	JobID    string           `json:"job_id"`
	Type     EventType        `json:"type"`
	Stage    int              `json:"stage"`
	State    State            `json:"state"`
	Progress *parse.Progress  `json:"progress,omitempty"`
	Outcome  *process.Outcome `json:"outcome,omitempty"`
	Failure  *Failure         `json:"failure,omitempty"`
}

// Terminal reports whether e is the last event of its job
func (e Event) Terminal() bool {
	switch e.Type {
	case EventSucceeded, EventFailed, EventCancelled:
		return true
	}
	return false
}

// Failure carries what a consumer needs to explain a failed or cancelled job
type Failure struct {
	Kind     Kind     `json:"kind,omitempty"`
	Message  string   `json:"message"`
	Field    string   `json:"field,omitempty"`
	ExitCode int      `json:"exit_code,omitempty"`
	Tail     []string `json:"tail,omitempty"`
}

func failureOf(state State, err error) *Failure {
	if err == nil {
		return nil
	}
	f := &Failure{Kind: state.Kind, Message: err.Error()}
	var ve *task.ValidationError
	if errors.As(err, &ve) {
		f.Field = ve.Field
	}
	var se *process.StageError
	if errors.As(err, &se) {
		if se.Kind == process.KindTool {
			f.ExitCode = se.ExitCode
		}
		f.Tail = se.Tail
	}
	return f
}

// EventLog keeps the most recent events of a job for incremental reads
type EventLog struct {
	mu        sync.RWMutex
	maxEvents int
	events    []Event
	updated   chan struct{}
}

// NewEventLog creates a log holding at most maxEvents, 500 if maxEvents <= 0.
// The terminal event is always kept.
func NewEventLog(maxEvents int) *EventLog {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventLog{maxEvents: maxEvents, updated: make(chan struct{})}
}

func (l *EventLog) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	if len(l.events) > l.maxEvents {
		trim := len(l.events) - l.maxEvents
		l.events = append([]Event(nil), l.events[trim:]...)
	}
	close(l.updated)
	l.updated = make(chan struct{})
}

// Updated returns a channel closed by the next Append
func (l *EventLog) Updated() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updated
}

// Since returns events with sequence strictly greater than seq
func (l *EventLog) Since(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, 0, len(l.events))
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the newest event
func (l *EventLog) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}
