// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package job

import "errors"

var (
	ErrNotFound         = errors.New("job not found")
	ErrAlreadySubmitted = errors.New("job already submitted")
	ErrNotSubmitted     = errors.New("job not submitted")
	ErrAlreadyStarted   = errors.New("job already started")
	ErrNotRunning       = errors.New("job not running")
	ErrFinished         = errors.New("job already finished")
	ErrExists           = errors.New("job already exists")
)
