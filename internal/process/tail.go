// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package process

import (
	"container/ring"
	"sync"
)

// Tail keeps the last n lines written to it
type Tail struct {
	log  *ring.Ring
	lock sync.RWMutex
}

// NewTail creates a Tail of n lines, 20 if n <= 0
func NewTail(n int) *Tail {
	if n <= 0 {
		n = 20
	}
	return &Tail{log: ring.New(n)}
}

func (t *Tail) Add(line string) {
	t.lock.Lock()
	t.log.Value = line
	t.log = t.log.Next()
	t.lock.Unlock()
}

// Lines returns the kept lines, oldest first
func (t *Tail) Lines() []string {
	var out []string
	t.lock.RLock()
	t.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(string))
		}
	})
	t.lock.RUnlock()
	return out
}
