// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package task

import (
	"strings"
	"time"
)

// Stage is one external process invocation of a job
type Stage struct {
	Index        int           `json:"index"`
	Name         string        `json:"name"`
	Program      string        `json:"program"`
	Args         []string      `json:"args"`
	Input        string        `json:"input"`
	Output       string        `json:"output"`
	Intermediate bool          `json:"intermediate"`
	Duration     time.Duration `json:"duration"`
}

// CommandLine renders the stage for logs, quoting every argument
func (s Stage) CommandLine() string {
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, quote(s.Program))
	for _, a := range s.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
