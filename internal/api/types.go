// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package api

import "github.com/ZSC714725/cutmanager/internal/job"

// RegionIO is a cut region. Times accept HH:MM:SS.mmm, MM:SS.mmm or seconds.
type RegionIO struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

// FilterIO is one filter selection
type FilterIO struct {
	Type       string  `json:"type" binding:"required"`
	Profile    string  `json:"profile,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	GainDB     float64 `json:"gain_db,omitempty"`
	Frequency  int     `json:"frequency,omitempty"`
	TargetLUFS float64 `json:"target_lufs,omitempty"`
}

// JobRequest for POST /jobs
type JobRequest struct {
	ID        string     `json:"id"`
	Reference string     `json:"reference"`
	Source    string     `json:"source" binding:"required"`
	Output    string     `json:"output" binding:"required"`
	Format    string     `json:"format"`
	Duration  string     `json:"duration"`
	Regions   []RegionIO `json:"regions"`
	Filters   []FilterIO `json:"filters"`
	Overwrite bool       `json:"overwrite"`
	DropVideo bool       `json:"drop_video"`
	DropAudio bool       `json:"drop_audio"`
	Autostart bool       `json:"autostart"`
}

// Job in API responses
type Job struct {
	ID         string       `json:"id"`
	Reference  string       `json:"reference,omitempty"`
	State      job.State    `json:"state"`
	Source     string       `json:"source"`
	Output     string       `json:"output"`
	Regions    []RegionIO   `json:"regions"`
	Filters    []FilterIO   `json:"filters,omitempty"`
	Stages     []Stage      `json:"stages"`
	Progress   *Progress    `json:"progress,omitempty"`
	Failure    *job.Failure `json:"failure,omitempty"`
	LastEvent  uint64       `json:"last_event"`
	CreatedAt  int64        `json:"created_at"`
	StartedAt  int64        `json:"started_at,omitempty"`
	FinishedAt int64        `json:"finished_at,omitempty"`
}

// Stage in API responses
type Stage struct {
	Index        int      `json:"index"`
	Name         string   `json:"name"`
	Command      []string `json:"command"`
	Intermediate bool     `json:"intermediate"`
}

// Progress in seconds
type Progress struct {
	Stage   int     `json:"stage"`
	Elapsed float64 `json:"elapsed_seconds"`
	Total   float64 `json:"total_seconds,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
}

// Event in API responses and on the stream
type Event struct {
	Seq      uint64       `json:"seq"`
	Time     int64        `json:"time_ms"`
	Type     string       `json:"type"`
	Stage    int          `json:"stage"`
	State    job.State    `json:"state"`
	Progress *Progress    `json:"progress,omitempty"`
	Failure  *job.Failure `json:"failure,omitempty"`
	Output   string       `json:"output,omitempty"`
	Size     int64        `json:"size_bytes,omitempty"`
}

// CommandRequest for start/cancel
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Field   string `json:"field,omitempty"`
}
