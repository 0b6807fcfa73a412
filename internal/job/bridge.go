// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package job

import (
	"sync"
	"time"
)

// Bridge carries the events of one job from the goroutines running it to a
// single consumer. Publish never blocks; events are queued and delivered on
// the channel in publish order. After Close the channel is closed once the
// queue is drained.
//
// The consumer must drain Events until it is closed.
type Bridge struct {
	jobID string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	seq    uint64
	closed bool

	out chan Event
}

// NewBridge creates the bridge for jobID and starts its delivery goroutine
func NewBridge(jobID string) *Bridge {
	b := &Bridge{
		jobID: jobID,
		out:   make(chan Event),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.pump()
	return b
}

// Publish stamps e with the job id, the next sequence number and the time,
// and queues it. Events published after Close are dropped.
func (b *Bridge) Publish(e Event) (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return e, false
	}
	b.seq++
	e.Seq = b.seq
	e.JobID = b.jobID
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	b.queue = append(b.queue, e)
	b.cond.Signal()
	return e, true
}

// Close stops accepting events
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()
}

// Events returns the delivery channel
func (b *Bridge) Events() <-chan Event {
	return b.out
}

func (b *Bridge) pump() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			close(b.out)
			return
		}
		e := b.queue[0]
		b.queue[0] = Event{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.out <- e
	}
}
