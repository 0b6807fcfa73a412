// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package job

import (
	"testing"
	"time"
)

func TestBridgeOrdering(t *testing.T) {
	b := NewBridge("job")

	const n = 1000
	// 消费者尚未读取时发布不会阻塞
	for i := 0; i < n; i++ {
		b.Publish(Event{Type: EventProgress, Stage: i})
	}
	b.Publish(Event{Type: EventSucceeded})
	b.Close()

	if _, ok := b.Publish(Event{Type: EventProgress}); ok {
		t.Fatal("publish after close accepted")
	}

	var got []Event
	for e := range b.Events() {
		got = append(got, e)
	}
	if len(got) != n+1 {
		t.Fatalf("got %d events, want %d", len(got), n+1)
	}
	for i, e := range got {
		if e.Seq != uint64(i+1) || e.JobID != "job" || e.Time.IsZero() {
			t.Fatalf("event %d: %+v", i, e)
		}
		if i < n && e.Stage != i {
			t.Fatalf("event %d out of order: stage %d", i, e.Stage)
		}
	}
	if !got[n].Terminal() {
		t.Fatal("terminal event is not last")
	}
}

func TestBridgeConcurrentProducer(t *testing.T) {
	b := NewBridge("job")
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: EventProgress, Stage: i})
			if i%10 == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		b.Publish(Event{Type: EventCancelled})
		b.Close()
	}()

	var last Event
	count := 0
	for e := range b.Events() {
		if e.Seq <= last.Seq {
			t.Fatalf("seq %d after %d", e.Seq, last.Seq)
		}
		last = e
		count++
	}
	if count != 101 || last.Type != EventCancelled {
		t.Fatalf("count = %d, last = %s", count, last.Type)
	}
}

func TestEventLogSince(t *testing.T) {
	l := NewEventLog(3)
	updated := l.Updated()
	for i := 1; i <= 4; i++ {
		l.Append(Event{Seq: uint64(i)})
	}
	select {
	case <-updated:
	default:
		t.Fatal("Updated not signalled")
	}

	events := l.Since(2)
	if len(events) != 2 || events[0].Seq != 3 || events[1].Seq != 4 {
		t.Fatalf("Since(2) = %+v", events)
	}
	if all := l.Since(0); len(all) != 3 || all[0].Seq != 2 {
		t.Fatalf("history not capped: %+v", all)
	}
	if last, ok := l.Last(); !ok || last.Seq != 4 {
		t.Fatalf("Last = %+v, %v", last, ok)
	}
}
