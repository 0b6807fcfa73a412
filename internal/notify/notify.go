// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

// Package notify publishes finished jobs to NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZSC714725/cutmanager/internal/job"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when no subject is configured
const DefaultSubject = "cutmanager.jobs.finished"

// JobFinished is the message published for every terminal job
type JobFinished struct {
	ID         string       `json:"id"`
	State      job.State    `json:"state"`
	Source     string       `json:"source,omitempty"`
	Output     string       `json:"output,omitempty"`
	Stages     int          `json:"stages"`
	Failure    *job.Failure `json:"failure,omitempty"`
	FinishedAt time.Time    `json:"finished_at"`
	Elapsed    float64      `json:"elapsed_seconds,omitempty"`
}

// Publisher is the part of *nats.Conn used here
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier implements job.Notifier
type Notifier struct {
	pub     Publisher
	nc      *nats.Conn
	subject string
}

// Connect dials the NATS server at url
func Connect(url, subject string) (*Notifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("cutmanager"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	n := New(nc, subject)
	n.nc = nc
	return n, nil
}

// New creates a Notifier publishing through pub
func New(pub Publisher, subject string) *Notifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Notifier{pub: pub, subject: subject}
}

func (n *Notifier) JobFinished(info job.Info) error {
	msg := JobFinished{
		ID:      info.ID,
		State:   info.State,
		Stages:  len(info.Stages),
		Failure: info.Failure,
	}
	if info.Params != nil {
		msg.Source = info.Params.Source
		msg.Output = info.Params.Output
	}
	if info.FinishedAt != nil {
		msg.FinishedAt = info.FinishedAt.UTC()
		if info.StartedAt != nil {
			msg.Elapsed = info.FinishedAt.Sub(*info.StartedAt).Seconds()
		}
	}
	return n.PublishJSON(msg)
}

// PublishJSON publishes v on the notifier's subject
func (n *Notifier) PublishJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return n.pub.Publish(n.subject, b)
}

// Close drains the connection opened by Connect
func (n *Notifier) Close() {
	if n.nc != nil {
		_ = n.nc.Drain()
	}
}
