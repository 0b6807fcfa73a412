// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package job

import (
	"sort"
	"sync"

	"github.com/ZSC714725/cutmanager/internal/logger"
	"github.com/ZSC714725/cutmanager/internal/task"

	"github.com/lithammer/shortuuid/v4"
)

// Notifier is told about every job that reached a terminal state
type Notifier interface {
	JobFinished(info Info) error
}

// Job is a registered controller with its event history
type Job struct {
	*Controller
	Reference string

	log    *EventLog
	logged chan struct{}
}

// Log returns the recorded events of the job
func (j *Job) Log() *EventLog { return j.log }

// Logged is closed once the terminal event has been recorded
func (j *Job) Logged() <-chan struct{} { return j.logged }

// StoreConfig configures a Store
type StoreConfig struct {
	Builder   Builder
	Runner    Runner
	TempDir   string
	MaxEvents int
	Logger    logger.Logger
	Notifier  Notifier
}

// AddOptions for Store.Add
type AddOptions struct {
	ID        string // 为空时自动生成
	Reference string
	Autostart bool
}

// Store manages jobs in memory
type Store struct {
	config StoreConfig
	logger logger.Logger
	jobs   map[string]*Job
	mu     sync.RWMutex
}

// NewStore creates a job store
func NewStore(config StoreConfig) *Store {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		config: config,
		logger: log,
		jobs:   make(map[string]*Job),
	}
}

// Add registers a job for p and submits it. A job rejected by validation is
// kept in the store as Failed(validation) and returned with the error.
func (s *Store) Add(p *task.Params, opts AddOptions) (*Job, error) {
	id := opts.ID
	if len(id) == 0 {
		id = shortuuid.New()
	}

	s.mu.Lock()
	if _, exists := s.jobs[id]; exists {
		s.mu.Unlock()
		return nil, ErrExists
	}
	j := &Job{
		Controller: New(id, Deps{
			Builder: s.config.Builder,
			Runner:  s.config.Runner,
			TempDir: s.config.TempDir,
			Logger:  s.logger,
		}),
		Reference: opts.Reference,
		log:       NewEventLog(s.config.MaxEvents),
		logged:    make(chan struct{}),
	}
	s.jobs[id] = j
	s.mu.Unlock()

	go s.record(j)

	if err := j.Submit(p); err != nil {
		return j, err
	}
	if opts.Autostart {
		if err := j.Start(); err != nil {
			return j, err
		}
	}
	return j, nil
}

func (s *Store) record(j *Job) {
	defer close(j.logged)
	for ev := range j.Events() {
		j.log.Append(ev)
		if !ev.Terminal() || s.config.Notifier == nil {
			continue
		}
		if err := s.config.Notifier.JobFinished(j.Info()); err != nil {
			s.logger.Error("job %s: notify: %s", j.ID(), err)
		}
	}
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns the jobs matching reference (all if empty), oldest first
func (s *Store) List(reference string) []*Job {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if len(reference) > 0 && j.Reference != reference {
			continue
		}
		out = append(out, j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].createdAt.Equal(out[b].createdAt) {
			return out[a].ID() < out[b].ID()
		}
		return out[a].createdAt.Before(out[b].createdAt)
	})
	return out
}

func (s *Store) Start(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	return j.Start()
}

func (s *Store) Cancel(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	return j.Cancel()
}

// Delete removes a job. A job that has not finished is ended first, see
// Controller.Discard.
func (s *Store) Delete(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	j.Discard()

	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	return nil
}

// Close ends all jobs, pending ones included, and waits until they are
// cleaned up
func (s *Store) Close() {
	for _, j := range s.List("") {
		j.Discard()
	}
}
