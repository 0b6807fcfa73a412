// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZSC714725/cutmanager/internal/ffmpeg"
	"github.com/ZSC714725/cutmanager/internal/ffmpeg/skills"
	"github.com/ZSC714725/cutmanager/internal/job"
	"github.com/ZSC714725/cutmanager/internal/process"
	"github.com/ZSC714725/cutmanager/internal/task"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// stubRunner writes the stage output after one progress line. With block set
// it waits for cancellation instead.
type stubRunner struct {
	block   bool
	started chan struct{}
}

func (r *stubRunner) Run(ctx context.Context, st task.Stage, onLine func(string)) (process.Outcome, error) {
	onLine("frame=1 time=00:00:01.00 speed=2.0x")
	if r.block {
		r.started <- struct{}{}
		<-ctx.Done()
		return process.Outcome{}, &process.StageError{Kind: process.KindCancelled, Stage: st.Index, Err: process.ErrCancelled}
	}
	if err := os.WriteFile(st.Output, []byte("data"), 0o644); err != nil {
		return process.Outcome{}, &process.StageError{Kind: process.KindTool, Stage: st.Index, Err: err}
	}
	return process.Outcome{Stage: st.Index, Output: st.Output, Size: 4}, nil
}

type stubSkills struct {
	sk      skills.Skills
	reloads int
}

func (s *stubSkills) Skills() skills.Skills { return s.sk }

func (s *stubSkills) ReloadSkills(ctx context.Context) error {
	s.reloads++
	return nil
}

type testServer struct {
	router *gin.Engine
	store  *job.Store
	dir    string
	src    string
	runner *stubRunner
	skills *stubSkills
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(src, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := ffmpeg.NewBuilder(ffmpeg.Config{})
	if err != nil {
		t.Fatal(err)
	}

	ts := &testServer{
		dir:    dir,
		src:    src,
		runner: &stubRunner{started: make(chan struct{}, 4)},
		skills: &stubSkills{},
	}
	ts.skills.sk.Version = "7.1"
	ts.store = job.NewStore(job.StoreConfig{Builder: b, Runner: ts.runner, TempDir: dir})
	t.Cleanup(ts.store.Close)

	ts.router = gin.New()
	NewHandler(ts.store, ts.skills).Register(ts.router.Group("/api/v1"))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (ts *testServer) request(output string) JobRequest {
	return JobRequest{
		Source:  ts.src,
		Output:  filepath.Join(ts.dir, output),
		Regions: []RegionIO{{Start: "00:00:05", End: "10.5"}},
		Filters: []FilterIO{{Type: "volume", GainDB: -3}},
	}
}

func (ts *testServer) wait(t *testing.T, id string) {
	t.Helper()
	j, err := ts.store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-j.Logged():
	case <-time.After(20 * time.Second):
		t.Fatalf("job %s never finished", id)
	}
}

func TestAddJobRunsToCompletion(t *testing.T) {
	ts := newTestServer(t)
	req := ts.request("out.mp4")
	req.Reference = "batch"
	req.Autostart = true

	w := ts.do(t, http.MethodPost, "/api/v1/jobs", req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST = %d %s", w.Code, w.Body)
	}
	created := decode[Job](t, w)
	if created.ID == "" || len(created.Stages) != 1 || created.Stages[0].Command[0] != "ffmpeg" {
		t.Fatalf("created %+v", created)
	}
	if created.Regions[0].Start != "00:00:05.000" || created.Regions[0].End != "00:00:10.500" {
		t.Fatalf("regions %+v", created.Regions)
	}
	ts.wait(t, created.ID)

	got := decode[Job](t, ts.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID, nil))
	if got.State != job.Succeeded() || got.FinishedAt == 0 {
		t.Fatalf("job %+v", got)
	}
	if got.Progress == nil || got.Progress.Elapsed != 1 || got.Progress.Total != 5.5 {
		t.Fatalf("progress %+v", got.Progress)
	}

	events := decode[[]Event](t, ts.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID+"/events", nil))
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Type)
	}
	want := "stage_started,progress,stage_completed,succeeded"
	if strings.Join(kinds, ",") != want {
		t.Fatalf("events %v, want %s", kinds, want)
	}
	if events[2].Size != 4 || events[2].Output != req.Output {
		t.Fatalf("completion event %+v", events[2])
	}

	since := decode[[]Event](t, ts.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID+"/events?since=3", nil))
	if len(since) != 1 || since[0].Seq != 4 {
		t.Fatalf("since=3: %+v", since)
	}

	list := decode[[]Job](t, ts.do(t, http.MethodGet, "/api/v1/jobs?reference=batch", nil))
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list %+v", list)
	}
	if list := decode[[]Job](t, ts.do(t, http.MethodGet, "/api/v1/jobs?reference=x", nil)); len(list) != 0 {
		t.Fatalf("list of other reference %+v", list)
	}
}

func TestAddJobValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		modify func(*JobRequest)
		field  string
	}{
		{"bad start", func(r *JobRequest) { r.Regions[0].Start = "1:99" }, "regions[0].start"},
		{"bad end", func(r *JobRequest) { r.Regions[0].End = "abc" }, "regions[0].end"},
		{"empty region", func(r *JobRequest) { r.Regions[0].End = r.Regions[0].Start }, "regions[0]"},
		{"no regions", func(r *JobRequest) { r.Regions = nil }, "regions"},
		{"missing source", func(r *JobRequest) { r.Source = filepath.Join(ts.dir, "nope.mp4") }, "source"},
		{"unknown format", func(r *JobRequest) { r.Format = "xyz" }, "format"},
		{"bad duration", func(r *JobRequest) { r.Duration = "-" }, "duration"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ts.request("out" + string(rune('a'+i)) + ".mp4")
			tt.modify(&req)

			w := ts.do(t, http.MethodPost, "/api/v1/jobs", req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("POST = %d %s", w.Code, w.Body)
			}
			if e := decode[ErrorResponse](t, w); e.Field != tt.field {
				t.Fatalf("field = %q, want %q (%s)", e.Field, tt.field, e.Detail)
			}
		})
	}
}

func TestAddJobDuplicateID(t *testing.T) {
	ts := newTestServer(t)
	req := ts.request("out.mp4")
	req.ID = "fixed"

	if w := ts.do(t, http.MethodPost, "/api/v1/jobs", req); w.Code != http.StatusOK {
		t.Fatalf("first POST = %d %s", w.Code, w.Body)
	}
	req.Output = filepath.Join(ts.dir, "other.mp4")
	if w := ts.do(t, http.MethodPost, "/api/v1/jobs", req); w.Code != http.StatusConflict {
		t.Fatalf("second POST = %d %s", w.Code, w.Body)
	}
}

func TestUnknownJob(t *testing.T) {
	ts := newTestServer(t)

	for _, tt := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/jobs/nope"},
		{http.MethodDelete, "/api/v1/jobs/nope"},
		{http.MethodGet, "/api/v1/jobs/nope/events"},
		{http.MethodGet, "/api/v1/jobs/nope/stream"},
	} {
		if w := ts.do(t, tt.method, tt.path, nil); w.Code != http.StatusNotFound {
			t.Fatalf("%s %s = %d", tt.method, tt.path, w.Code)
		}
	}
	w := ts.do(t, http.MethodPut, "/api/v1/jobs/nope/command", CommandRequest{Command: "start"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("command = %d", w.Code)
	}
}

func TestCommand(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.block = true

	created := decode[Job](t, ts.do(t, http.MethodPost, "/api/v1/jobs", ts.request("out.mp4")))
	path := "/api/v1/jobs/" + created.ID + "/command"

	if w := ts.do(t, http.MethodPut, path, CommandRequest{Command: "cancel"}); w.Code != http.StatusConflict {
		t.Fatalf("cancel before start = %d", w.Code)
	}
	if w := ts.do(t, http.MethodPut, path, CommandRequest{Command: "rewind"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown command = %d", w.Code)
	}
	if w := ts.do(t, http.MethodPut, path, CommandRequest{Command: "start"}); w.Code != http.StatusOK {
		t.Fatalf("start = %d %s", w.Code, w.Body)
	}
	<-ts.runner.started
	if w := ts.do(t, http.MethodPut, path, CommandRequest{Command: "start"}); w.Code != http.StatusConflict {
		t.Fatalf("second start = %d", w.Code)
	}
	if w := ts.do(t, http.MethodPut, path, CommandRequest{Command: "cancel"}); w.Code != http.StatusOK {
		t.Fatalf("cancel = %d %s", w.Code, w.Body)
	}
	ts.wait(t, created.ID)

	got := decode[Job](t, ts.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID, nil))
	if got.State != job.Cancelled() {
		t.Fatalf("state = %s", got.State)
	}
	if w := ts.do(t, http.MethodDelete, "/api/v1/jobs/"+created.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
}

func TestStream(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.block = true

	created := decode[Job](t, ts.do(t, http.MethodPost, "/api/v1/jobs", ts.request("out.mp4")))
	ts.do(t, http.MethodPut, "/api/v1/jobs/"+created.ID+"/command", CommandRequest{Command: "start"})
	<-ts.runner.started

	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + created.ID + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type %q", ct)
	}

	go ts.store.Cancel(created.ID)

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	out := body.String()
	for _, want := range []string{"event:stage_started", "event:progress", "id:1\n", "event:cancelled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stream lacks %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "}") || strings.Index(out, "event:cancelled") < strings.Index(out, "event:progress") {
		t.Fatalf("terminal event is not last:\n%s", out)
	}
}

func TestWebSocket(t *testing.T) {
	ts := newTestServer(t)
	req := ts.request("out.mp4")
	req.Autostart = true
	created := decode[Job](t, ts.do(t, http.MethodPost, "/api/v1/jobs", req))
	ts.wait(t, created.ID)

	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/" + created.ID + "/ws?since=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var got []string
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		got = append(got, ev.Type)
	}
	if strings.Join(got, ",") != "progress,stage_completed,succeeded" {
		t.Fatalf("events %v", got)
	}
}

func TestSkills(t *testing.T) {
	ts := newTestServer(t)

	got := decode[SkillsResponse](t, ts.do(t, http.MethodGet, "/api/v1/skills", nil))
	if got.FFmpeg.Version != "7.1" || len(got.Outputs) == 0 {
		t.Fatalf("skills %+v", got)
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/skills/reload", nil); w.Code != http.StatusOK {
		t.Fatalf("reload = %d", w.Code)
	}
	if ts.skills.reloads != 1 {
		t.Fatalf("reloads = %d", ts.skills.reloads)
	}
}
