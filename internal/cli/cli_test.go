// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ZSC714725/cutmanager/internal/task"
)

func TestParseCut(t *testing.T) {
	tests := []struct {
		in      string
		want    task.Region
		wantErr bool
	}{
		{"10-20", task.Region{Start: 10 * time.Second, End: 20 * time.Second}, false},
		{"00:01:00-00:01:30.5", task.Region{Start: time.Minute, End: 90*time.Second + 500*time.Millisecond}, false},
		{"1:05-2:00", task.Region{Start: 65 * time.Second, End: 2 * time.Minute}, false},
		{"10", task.Region{}, true},
		{"a-b", task.Region{}, true},
		{"10-", task.Region{}, true},
	}
	for _, tt := range tests {
		got, err := parseCut(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseCut(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseCut(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParamsFromFlags(t *testing.T) {
	cmd := newRunCommand()
	err := cmd.ParseFlags([]string{
		"--source", "in.mp4", "--output", "out.mp3",
		"--cut", "1-2", "--cut", "3-4.5",
		"--volume", "-3", "--normalize", "-16",
		"--noise-profile", "noise.prof",
		"--drop-video",
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := paramsFromFlags(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != "in.mp4" || p.Output != "out.mp3" || !p.DropVideo {
		t.Fatalf("params %+v", p)
	}
	if len(p.Regions) != 2 || p.Regions[1].End != 4500*time.Millisecond {
		t.Fatalf("regions %+v", p.Regions)
	}
	want := []task.Filter{task.NoiseReduction("noise.prof", 0.21), task.Volume(-3), task.Normalize(-16)}
	if len(p.Filters) != len(want) {
		t.Fatalf("filters %+v", p.Filters)
	}
	for i := range want {
		if p.Filters[i] != want[i] {
			t.Fatalf("filter %d = %+v, want %+v", i, p.Filters[i], want[i])
		}
	}
}

func TestParamsFromFlagsBadCut(t *testing.T) {
	cmd := newRunCommand()
	if err := cmd.ParseFlags([]string{"--source", "a", "--output", "b", "--cut", "5-x"}); err != nil {
		t.Fatal(err)
	}
	_, err := paramsFromFlags(cmd)
	var ve *task.ValidationError
	if !errors.As(err, &ve) || ve.Field != "regions[0]" {
		t.Fatalf("err = %v", err)
	}
}

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	out := filepath.Join(dir, "out.mp4")
	ff := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(src, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\nfor a in \"$@\"; do out=\"$a\"; done\necho \"time=00:00:01.00 speed=1.0x\" >&2\necho data > \"$out\"\n"
	if err := os.WriteFile(ff, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	root := NewRoot()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"run", "--ffmpeg", ff, "--temp-dir", dir, "--source", src, "--output", out, "--cut", "0-2"})

	if err := root.Execute(); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != out {
		t.Fatalf("stdout %q", stdout.String())
	}
	log := stderr.String()
	for _, want := range []string{"[1/1] transcode", "00:00:01.000 / 00:00:02.000 (50.0%)", "job succeeded"} {
		if !strings.Contains(log, want) {
			t.Fatalf("output lacks %q:\n%s", want, log)
		}
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestRunFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	ff := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(src, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ff, []byte("#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	root := NewRoot()
	var stderr bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&stderr)
	root.SetArgs([]string{"run", "--ffmpeg", ff, "--temp-dir", dir, "--source", src, "--output", filepath.Join(dir, "out.mp4"), "--cut", "0-2"})

	if err := root.Execute(); err == nil {
		t.Fatal("run succeeded")
	}
	if !strings.Contains(stderr.String(), "Invalid data found") {
		t.Fatalf("tail not printed:\n%s", stderr.String())
	}
}
