// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具
//
// Package process runs one external tool invocation per stage.

package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"

	"github.com/ZSC714725/cutmanager/internal/task"
)

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Outcome of a successful stage
type Outcome struct {
	Stage    int           `json:"stage"`
	Output   string        `json:"output"`
	Size     int64         `json:"size_bytes"`
	Duration time.Duration `json:"duration"`
	Usage    Usage         `json:"usage"`
}

// Executor spawns stage processes. The zero value is usable.
type Executor struct {
	// Grace is how long a process may take to exit after the interrupt
	// before it is killed. Defaults to 5s.
	Grace time.Duration
	// TailLines bounds the diagnostic output kept for errors. Defaults to 20.
	TailLines int
	Logger    Logger
	// NewSampler creates the resource sampler for each run, nil uses gopsutil
	NewSampler func() Sampler
}

func (e *Executor) grace() time.Duration {
	if e.Grace <= 0 {
		return 5 * time.Second
	}
	return e.Grace
}

func (e *Executor) logger() Logger {
	if e.Logger == nil {
		return &nopLogger{}
	}
	return e.Logger
}

// Run executes stage and blocks until the process is gone. onLine receives
// every line of the diagnostic stream in order and is never called after
// Run returns. Cancelling ctx interrupts the process, and kills it if it is
// still alive after the grace period.
//
// Errors are always *StageError.
func (e *Executor) Run(ctx context.Context, stage task.Stage, onLine func(string)) (Outcome, error) {
	log := e.logger()
	fail := func(kind Kind, err error) (Outcome, error) {
		return Outcome{}, &StageError{Kind: kind, Stage: stage.Index, Program: stage.Program, ExitCode: -1, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(KindCancelled, err)
	}

	cmd := exec.Command(stage.Program, stage.Args...)
	setProcAttr(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fail(KindSpawn, err)
	}

	log.Debug("stage %d: %s", stage.Index, stage.CommandLine())
	started := time.Now()
	if err := cmd.Start(); err != nil {
		log.Error("stage %d: %s", stage.Index, err)
		return fail(KindSpawn, err)
	}

	sampler := e.sampler()
	if err := sampler.Start(cmd.Process.Pid); err != nil {
		log.Debug("stage %d: sampler: %s", stage.Index, err)
	}

	tail := NewTail(e.TailLines)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(scanLine)
		for scanner.Scan() {
			line := scanner.Text()
			tail.Add(line)
			sampler.Sample()
			if onLine != nil {
				onLine(line)
			}
		}
		// 超长行导致扫描中止时继续读空管道，避免子进程阻塞
		io.Copy(io.Discard, stderr)
	}()

	// Wait 必须在读完 stderr 之后调用；进程关闭 stderr 后仍可能继续运行
	waitDone := make(chan error, 1)
	go func() {
		<-readDone
		waitDone <- cmd.Wait()
	}()

	var (
		cancelled bool
		killTimer *time.Timer
		waitErr   error
	)
	select {
	case waitErr = <-waitDone:
	case <-ctx.Done():
		cancelled = true
		log.Info("stage %d: cancelling %s", stage.Index, stage.Program)
		if err := interrupt(cmd); err != nil {
			kill(cmd)
		} else {
			killTimer = time.AfterFunc(e.grace(), func() {
				log.Info("stage %d: %s did not exit in %s, killing", stage.Index, stage.Program, e.grace())
				kill(cmd)
			})
		}
		waitErr = <-waitDone
	}

	if killTimer != nil {
		killTimer.Stop()
	}

	usage := sampler.Stop()
	elapsed := time.Since(started)

	if cancelled || ctx.Err() != nil {
		return Outcome{}, &StageError{
			Kind:     KindCancelled,
			Stage:    stage.Index,
			Program:  stage.Program,
			ExitCode: exitCode(cmd, waitErr),
			Tail:     tail.Lines(),
			Err:      ctx.Err(),
		}
	}

	if waitErr != nil {
		code := exitCode(cmd, waitErr)
		log.Error("stage %d: %s exited with %d", stage.Index, stage.Program, code)
		return Outcome{}, &StageError{
			Kind:     KindTool,
			Stage:    stage.Index,
			Program:  stage.Program,
			ExitCode: code,
			Tail:     tail.Lines(),
			Err:      waitErr,
		}
	}

	var size int64
	if stage.Output != "" {
		fi, err := os.Stat(stage.Output)
		if err != nil || fi.Size() == 0 {
			log.Error("stage %d: %s exited cleanly without output %s", stage.Index, stage.Program, stage.Output)
			return Outcome{}, &StageError{
				Kind:    KindSilent,
				Stage:   stage.Index,
				Program: stage.Program,
				Tail:    tail.Lines(),
				Err:     err,
			}
		}
		size = fi.Size()
	}

	log.Info("stage %d: %s finished in %s", stage.Index, stage.Program, elapsed.Round(time.Millisecond))
	return Outcome{
		Stage:    stage.Index,
		Output:   stage.Output,
		Size:     size,
		Duration: elapsed,
		Usage:    usage,
	}, nil
}

func (e *Executor) sampler() Sampler {
	if e.NewSampler != nil {
		if s := e.NewSampler(); s != nil {
			return s
		}
	}
	return NewSysSampler()
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err == nil && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// scanLine splits on \n and \r, ffmpeg rewrites its stats line with \r
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
