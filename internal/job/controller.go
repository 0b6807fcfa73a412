// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZSC714725/cutmanager/internal/ffmpeg/parse"
	"github.com/ZSC714725/cutmanager/internal/logger"
	"github.com/ZSC714725/cutmanager/internal/process"
	"github.com/ZSC714725/cutmanager/internal/task"
)

// Builder turns parameters into stages, see ffmpeg.Builder
type Builder interface {
	Build(p *task.Params, scratch string) ([]task.Stage, error)
}

// Runner executes one stage, see process.Executor
type Runner interface {
	Run(ctx context.Context, stage task.Stage, onLine func(string)) (process.Outcome, error)
}

// Deps are the collaborators of a Controller
type Deps struct {
	Builder Builder
	Runner  Runner
	// TempDir is where the job's scratch directory is created, os.TempDir() if empty
	TempDir string
	Logger  logger.Logger
}

// ScratchDir is the directory holding the intermediate files of job id
func ScratchDir(tempDir, id string) string {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return filepath.Join(tempDir, "cutmanager-"+id)
}

// Controller runs exactly one job through its stages.
//
// Every terminal transition removes the scratch directory and, unless the
// job succeeded, the output of the final stage if that stage was spawned.
type Controller struct {
	id     string
	deps   Deps
	log    logger.Logger
	bridge *Bridge

	mu              sync.Mutex
	state           State
	params          *task.Params
	stages          []task.Stage
	scratch         string
	submitted       bool
	built           bool
	started         bool
	cancel          context.CancelFunc
	cancelRequested bool
	err             error
	createdAt       time.Time
	startedAt       time.Time
	finishedAt      time.Time

	done chan struct{}
}

// New creates the controller of job id
func New(id string, deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		id:        id,
		deps:      deps,
		log:       log,
		bridge:    NewBridge(id),
		state:     Pending(),
		scratch:   ScratchDir(deps.TempDir, id),
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (c *Controller) ID() string { return c.id }

// Events delivers the job's events in order. The terminal event is the last
// one; the channel is closed after it.
func (c *Controller) Events() <-chan Event { return c.bridge.Events() }

// Done is closed once the job reached a terminal state and cleaned up
func (c *Controller) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the job, nil while running or on success
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stages returns the planned stages, nil before a successful Submit
func (c *Controller) Stages() []task.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]task.Stage(nil), c.stages...)
}

// Submit builds the stages of p. A validation error ends the job in
// Failed(validation) without ever running it; the error is returned too.
// Start is refused until Submit returned.
func (c *Controller) Submit(p *task.Params) error {
	c.mu.Lock()
	switch {
	case c.submitted:
		c.mu.Unlock()
		return ErrAlreadySubmitted
	case c.state.Terminal():
		c.mu.Unlock()
		return ErrFinished
	}
	c.submitted = true
	c.params = p.Clone()
	c.mu.Unlock()

	stages, err := c.deps.Builder.Build(c.params, c.scratch)
	if err == nil && len(stages) == 0 {
		err = &task.ValidationError{Field: "params", Reason: "nothing to run"}
	}
	if err != nil {
		var ve *task.ValidationError
		if !errors.As(err, &ve) {
			err = &task.ValidationError{Field: "params", Reason: err.Error()}
		}
		c.log.Info("job %s: rejected: %s", c.id, err)
		c.finish(err, false)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// 构建期间任务已被丢弃
	if c.state.Terminal() {
		return ErrFinished
	}
	c.stages = stages
	c.built = true
	return nil
}

// Start runs the submitted stages in the background
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.started:
		return ErrAlreadyStarted
	case c.state.Terminal():
		return ErrFinished
	case !c.built:
		return ErrNotSubmitted
	}

	if err := c.setState(Running(0)); err != nil {
		return err
	}
	c.started = true
	c.startedAt = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx, c.stages)
	return nil
}

// Cancel stops the running job. The job ends Cancelled whatever a stage
// reports afterwards, except when every stage already succeeded: then the
// job succeeds and its output is kept.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhaseRunning {
		return ErrNotRunning
	}
	c.requestCancel()
	return nil
}

// requestCancel needs c.mu
func (c *Controller) requestCancel() {
	if c.cancelRequested {
		return
	}
	c.cancelRequested = true
	c.cancel()
	c.log.Info("job %s: cancel requested", c.id)
}

// Discard ends the job whatever its phase: a pending job becomes Cancelled
// without running, a running one is cancelled. It returns once the job is
// terminal and cleaned up.
func (c *Controller) Discard() {
	c.mu.Lock()
	switch c.state.Phase {
	case PhasePending:
		prev := c.state
		err := &process.StageError{Kind: process.KindCancelled, ExitCode: -1, Err: context.Canceled}
		if terr := c.setState(Cancelled()); terr != nil {
			c.mu.Unlock()
			c.log.Error("job %s: %s", c.id, terr)
			return
		}
		c.err = err
		c.finishedAt = time.Now()
		c.mu.Unlock()
		c.log.Info("job %s: discarded before start", c.id)
		c.terminate(prev, Cancelled(), err, false)
	case PhaseRunning:
		c.requestCancel()
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
	<-c.done
}

func (c *Controller) run(ctx context.Context, stages []task.Stage) {
	defer c.cancel()

	if len(stages) == 0 {
		c.finish(errors.New("no stages to run"), false)
		return
	}
	if err := os.MkdirAll(c.scratch, 0o755); err != nil {
		c.finish(fmt.Errorf("create scratch directory: %w", err), false)
		return
	}

	last := len(stages) - 1
	for i, st := range stages {
		if i > 0 {
			c.mu.Lock()
			err := c.setState(Running(i))
			c.mu.Unlock()
			if err != nil {
				c.finish(err, false)
				return
			}
		}

		if ctx.Err() != nil {
			c.finish(&process.StageError{Kind: process.KindCancelled, Stage: i, Program: st.Program, ExitCode: -1, Err: ctx.Err()}, false)
			return
		}

		c.publish(Event{Type: EventStageStarted, Stage: i})
		c.log.Info("job %s: stage %d/%d %s", c.id, i+1, len(stages), st.Name)

		outcome, err := c.deps.Runner.Run(ctx, st, c.lineHandler(st))
		if err != nil {
			spawned := i == last && !errors.Is(err, process.ErrSpawn)
			c.finish(err, spawned)
			return
		}
		c.publish(Event{Type: EventStageCompleted, Stage: i, Outcome: &outcome})
	}

	c.finish(nil, true)
}

func (c *Controller) lineHandler(st task.Stage) func(string) {
	return func(line string) {
		c.log.Debug("job %s: [%s] %s", c.id, st.Name, line)
		p, ok := parse.Parse(line)
		if !ok {
			return
		}
		if p.Total == 0 {
			p.Total = st.Duration
		}
		c.publish(Event{Type: EventProgress, Stage: st.Index, Progress: &p})
	}
}

// finish moves the job into its terminal state, cleans up and publishes the
// terminal event. finalSpawned says whether the last stage's process ran.
func (c *Controller) finish(err error, finalSpawned bool) {
	c.mu.Lock()
	prev := c.state
	if prev.Terminal() {
		c.mu.Unlock()
		return
	}
	if c.cancelRequested && err != nil && !errors.Is(err, process.ErrCancelled) {
		// 取消之后到达的失败一律按取消处理
		se := &process.StageError{Kind: process.KindCancelled, Stage: prev.Stage, ExitCode: -1, Err: context.Canceled}
		if prev.Stage < len(c.stages) {
			se.Program = c.stages[prev.Stage].Program
		}
		err = se
	}
	next := terminalFor(err)
	if terr := c.setState(next); terr != nil {
		c.log.Error("job %s: %s", c.id, terr)
		c.mu.Unlock()
		return
	}
	c.err = err
	c.finishedAt = time.Now()
	c.mu.Unlock()

	c.terminate(prev, next, err, finalSpawned)
}

// terminate cleans up after the transition into next and closes the event
// stream. Called exactly once per job, without c.mu.
func (c *Controller) terminate(prev, next State, err error, finalSpawned bool) {
	output := ""
	if c.params != nil {
		output = c.params.Output
	}

	if err := os.RemoveAll(c.scratch); err != nil {
		c.log.Error("job %s: remove %s: %s", c.id, c.scratch, err)
	}
	if next.Phase != PhaseSucceeded && finalSpawned && output != "" {
		if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
			c.log.Error("job %s: remove partial output %s: %s", c.id, output, err)
		}
	}

	ev := Event{Stage: prev.Stage, Failure: failureOf(next, err)}
	switch next.Phase {
	case PhaseSucceeded:
		ev.Type = EventSucceeded
		c.log.Info("job %s: succeeded, output %s", c.id, output)
	case PhaseCancelled:
		ev.Type = EventCancelled
		c.log.Info("job %s: cancelled", c.id)
	default:
		ev.Type = EventFailed
		c.log.Error("job %s: failed: %s", c.id, err)
	}
	c.publish(ev)
	c.bridge.Close()
	close(c.done)
}

// setState applies a checked transition. Needs c.mu.
func (c *Controller) setState(next State) error {
	if !canTransition(c.state, next) {
		return fmt.Errorf("can't change from %s to %s", c.state, next)
	}
	c.log.Debug("job %s: %s -> %s", c.id, c.state, next)
	c.state = next
	return nil
}

func (c *Controller) publish(e Event) {
	e.State = c.State()
	c.bridge.Publish(e)
}

// Info is a snapshot of the job
type Info struct {
	ID         string       `json:"id"`
	State      State        `json:"state"`
	Params     *task.Params `json:"params,omitempty"`
	Stages     []task.Stage `json:"stages,omitempty"`
	Failure    *Failure     `json:"failure,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{
		ID:        c.id,
		State:     c.state,
		Stages:    append([]task.Stage(nil), c.stages...),
		Failure:   failureOf(c.state, c.err),
		CreatedAt: c.createdAt,
	}
	if c.params != nil {
		info.Params = c.params.Clone()
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		info.StartedAt = &t
	}
	if !c.finishedAt.IsZero() {
		t := c.finishedAt
		info.FinishedAt = &t
	}
	return info
}
