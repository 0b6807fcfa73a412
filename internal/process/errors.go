// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package process

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSpawn         = errors.New("process could not be started")
	ErrToolFailure   = errors.New("process failed")
	ErrSilentFailure = errors.New("process produced no output")
	ErrCancelled     = errors.New("process cancelled")
)

// Kind classifies a stage error
type Kind string

const (
	KindSpawn     Kind = "spawn"
	KindTool      Kind = "tool"
	KindSilent    Kind = "silent"
	KindCancelled Kind = "cancelled"
)

func (k Kind) sentinel() error {
	switch k {
	case KindSpawn:
		return ErrSpawn
	case KindTool:
		return ErrToolFailure
	case KindSilent:
		return ErrSilentFailure
	case KindCancelled:
		return ErrCancelled
	}
	return nil
}

// StageError is returned by Executor.Run. It matches the sentinel of its
// Kind with errors.Is.
type StageError struct {
	Kind     Kind
	Stage    int
	Program  string
	ExitCode int
	Tail     []string // 最后若干行诊断输出
	Err      error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage %d (%s): %s", e.Stage, e.Program, e.Kind.sentinel())
	if e.Kind == KindTool {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Err != nil && e.Kind != KindTool {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	if n := len(e.Tail); n > 0 && e.Kind == KindTool {
		fmt.Fprintf(&b, ": %s", e.Tail[n-1])
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}
