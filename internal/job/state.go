// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package job

import (
	"errors"
	"fmt"

	"github.com/ZSC714725/cutmanager/internal/process"
	"github.com/ZSC714725/cutmanager/internal/task"
)

// Phase of a job
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Kind says why a job failed
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindSpawn      Kind = "spawn"
	KindTool       Kind = "tool"
	KindSilent     Kind = "silent"
	KindInternal   Kind = "internal"
)

// State is the job state. Stage is meaningful while running, Kind once failed.
type State struct {
	Phase Phase `json:"phase"`
	Stage int   `json:"stage"`
	Kind  Kind  `json:"kind,omitempty"`
}

func Pending() State { return State{Phase: PhasePending} }
func Running(stage int) State { return State{Phase: PhaseRunning, Stage: stage} }
func Succeeded() State { return State{Phase: PhaseSucceeded} }
func Failed(kind Kind) State { return State{Phase: PhaseFailed, Kind: kind} }
func Cancelled() State { return State{Phase: PhaseCancelled} }

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	switch s.Phase {
	case PhaseSucceeded, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

func (s State) String() string {
	switch s.Phase {
	case PhaseRunning:
		return fmt.Sprintf("running(%d)", s.Stage)
	case PhaseFailed:
		return fmt.Sprintf("failed(%s)", s.Kind)
	}
	return string(s.Phase)
}

// canTransition enforces the job state machine edges
func canTransition(from, to State) bool {
	switch from.Phase {
	case PhasePending:
		switch to.Phase {
		case PhaseRunning:
			return to.Stage == 0
		case PhaseFailed:
			return to.Kind == KindValidation
		case PhaseCancelled:
			// 未启动即被丢弃
			return true
		}
		return false
	case PhaseRunning:
		switch to.Phase {
		case PhaseRunning:
			return to.Stage == from.Stage+1
		case PhaseSucceeded, PhaseCancelled:
			return true
		case PhaseFailed:
			return to.Kind != KindNone && to.Kind != KindValidation
		}
		return false
	case PhaseSucceeded, PhaseFailed, PhaseCancelled:
		return false
	default:
		return false
	}
}

// terminalFor maps the error ending a job to its terminal state
func terminalFor(err error) State {
	if err == nil {
		return Succeeded()
	}
	var ve *task.ValidationError
	if errors.As(err, &ve) {
		return Failed(KindValidation)
	}
	var se *process.StageError
	if errors.As(err, &se) {
		switch se.Kind {
		case process.KindCancelled:
			return Cancelled()
		case process.KindSpawn:
			return Failed(KindSpawn)
		case process.KindTool:
			return Failed(KindTool)
		case process.KindSilent:
			return Failed(KindSilent)
		}
	}
	if errors.Is(err, process.ErrCancelled) {
		return Cancelled()
	}
	return Failed(KindInternal)
}
