// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package process

import (
	"sync"
	"time"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Usage is the peak resource usage observed for a stage process
type Usage struct {
	CPU    float64 `json:"cpu_percent"`
	Memory uint64  `json:"memory_bytes"`
}

// Sampler records the resource usage of a running process. Sample is called
// for every output line and decides itself whether to take a measurement.
type Sampler interface {
	Start(pid int) error
	Sample()
	Stop() Usage
}

type nullSampler struct{}

// NewNullSampler returns a sampler that measures nothing
func NewNullSampler() Sampler {
	return &nullSampler{}
}

func (s *nullSampler) Start(pid int) error { return nil }
func (s *nullSampler) Sample()             {}
func (s *nullSampler) Stop() Usage         { return Usage{} }

// sysSampler 使用 gopsutil 采集进程 CPU 和内存，最多每秒一次
type sysSampler struct {
	mu       sync.Mutex
	proc     *gopsutilprocess.Process
	interval time.Duration
	last     time.Time
	peak     Usage
}

// NewSysSampler creates a gopsutil backed sampler
func NewSysSampler() Sampler {
	return &sysSampler{interval: time.Second}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.proc = proc
	s.last = time.Now()
	s.peak = Usage{}
	s.mu.Unlock()
	return nil
}

func (s *sysSampler) Sample() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil {
		return
	}
	now := time.Now()
	if now.Sub(s.last) < s.interval {
		return
	}
	s.last = now

	if cpu, err := s.proc.Percent(0); err == nil && cpu > s.peak.CPU {
		s.peak.CPU = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil && mem.RSS > s.peak.Memory {
		s.peak.Memory = mem.RSS
	}
}

func (s *sysSampler) Stop() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = nil
	return s.peak
}
