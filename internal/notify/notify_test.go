// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ZSC714725/cutmanager/internal/job"
	"github.com/ZSC714725/cutmanager/internal/task"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return p.err
}

func TestJobFinished(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, "")

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	info := job.Info{
		ID:         "abc",
		State:      job.Failed(job.KindTool),
		Params:     &task.Params{Source: "/in.mp4", Output: "/out.mp4"},
		Stages:     []task.Stage{{}, {}},
		Failure:    &job.Failure{Kind: job.KindTool, Message: "boom", ExitCode: 1},
		StartedAt:  &started,
		FinishedAt: &finished,
	}
	if err := n.JobFinished(info); err != nil {
		t.Fatal(err)
	}
	if pub.subject != DefaultSubject {
		t.Fatalf("subject = %q", pub.subject)
	}

	var msg JobFinished
	if err := json.Unmarshal(pub.data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID != "abc" || msg.State != job.Failed(job.KindTool) || msg.Stages != 2 || msg.Output != "/out.mp4" {
		t.Fatalf("message %+v", msg)
	}
	if msg.Failure == nil || msg.Failure.ExitCode != 1 || msg.Elapsed != 1.5 || !msg.FinishedAt.Equal(finished) {
		t.Fatalf("message %+v", msg)
	}
}

func TestJobFinishedPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("disconnected")}
	if err := New(pub, "jobs").JobFinished(job.Info{ID: "x", State: job.Succeeded()}); err == nil {
		t.Fatal("publish error swallowed")
	}
	if pub.subject != "jobs" {
		t.Fatalf("subject = %q", pub.subject)
	}
}
