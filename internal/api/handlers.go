// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ZSC714725/cutmanager/internal/ffmpeg/skills"
	"github.com/ZSC714725/cutmanager/internal/job"
	"github.com/ZSC714725/cutmanager/internal/task"
	"github.com/ZSC714725/cutmanager/internal/timecode"

	"github.com/gin-gonic/gin"
)

// SkillsProvider exposes the detected ffmpeg capabilities
type SkillsProvider interface {
	Skills() skills.Skills
	ReloadSkills(ctx context.Context) error
}

// Handler holds dependencies
type Handler struct {
	store  *job.Store
	skills SkillsProvider
}

// NewHandler creates API handler
func NewHandler(store *job.Store, sk SkillsProvider) *Handler {
	return &Handler{store: store, skills: sk}
}

// Register mounts the routes on g
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/skills", h.Skills)
	g.POST("/skills/reload", h.ReloadSkills)

	g.GET("/jobs", h.ListJobs)
	g.POST("/jobs", h.AddJob)
	g.GET("/jobs/:id", h.GetJob)
	g.DELETE("/jobs/:id", h.DeleteJob)
	g.GET("/jobs/:id/events", h.GetEvents)
	g.GET("/jobs/:id/stream", h.Stream)
	g.GET("/jobs/:id/ws", h.WebSocket)
	g.PUT("/jobs/:id/command", h.Command)
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

func validationResp(c *gin.Context, ve *task.ValidationError) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: "Invalid job",
		Detail:  ve.Error(),
		Field:   ve.Field,
	})
}

// AddJob POST /api/v1/jobs
func (h *Handler) AddJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	params, err := requestToParams(&req)
	if err != nil {
		var ve *task.ValidationError
		if errors.As(err, &ve) {
			validationResp(c, ve)
			return
		}
		errResp(c, http.StatusBadRequest, "Invalid job", err.Error())
		return
	}

	j, err := h.store.Add(params, job.AddOptions{ID: req.ID, Reference: req.Reference, Autostart: req.Autostart})
	if err != nil {
		var ve *task.ValidationError
		switch {
		case errors.Is(err, job.ErrExists):
			errResp(c, http.StatusConflict, "Job exists", err.Error())
		case errors.As(err, &ve):
			validationResp(c, ve)
		default:
			errResp(c, http.StatusBadRequest, "Job not started", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, jobToAPI(j))
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	reference := c.DefaultQuery("reference", "")

	jobs := h.store.List(reference)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToAPI(j))
	}
	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, jobToAPI(j))
}

// DeleteJob DELETE /api/v1/jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// GetEvents GET /api/v1/jobs/:id/events?since=N
func (h *Handler) GetEvents(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	since, err := sinceParam(c)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid since", err.Error())
		return
	}

	events := j.Log().Since(since)
	out := make([]Event, len(events))
	for i, ev := range events {
		out[i] = eventToAPI(ev)
	}
	c.JSON(http.StatusOK, out)
}

// Command PUT /api/v1/jobs/:id/command
func (h *Handler) Command(c *gin.Context) {
	id := c.Param("id")

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	var err error
	switch req.Command {
	case "start":
		err = h.store.Start(id)
	case "cancel":
		err = h.store.Cancel(id)
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: start, cancel")
		return
	}

	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
			return
		}
		errResp(c, http.StatusConflict, "Command failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	c.JSON(http.StatusOK, skillsToAPI(h.skills.Skills()))
}

// ReloadSkills POST /api/v1/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.skills.ReloadSkills(ctx); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.skills.Skills()))
}

func requestToParams(req *JobRequest) (*task.Params, error) {
	p := &task.Params{
		Source:    req.Source,
		Output:    req.Output,
		Format:    req.Format,
		Overwrite: req.Overwrite,
		DropVideo: req.DropVideo,
		DropAudio: req.DropAudio,
	}

	if req.Duration != "" {
		d, err := timecode.Parse(req.Duration)
		if err != nil {
			return nil, &task.ValidationError{Field: "duration", Reason: err.Error()}
		}
		p.Duration = d
	}

	for i, r := range req.Regions {
		start, err := timecode.Parse(r.Start)
		if err != nil {
			return nil, &task.ValidationError{Field: fmt.Sprintf("regions[%d].start", i), Reason: err.Error()}
		}
		end, err := timecode.Parse(r.End)
		if err != nil {
			return nil, &task.ValidationError{Field: fmt.Sprintf("regions[%d].end", i), Reason: err.Error()}
		}
		p.Regions = append(p.Regions, task.Region{Start: start, End: end})
	}

	for _, f := range req.Filters {
		p.Filters = append(p.Filters, task.Filter{
			Kind:       task.FilterKind(f.Type),
			Profile:    f.Profile,
			Amount:     f.Amount,
			GainDB:     f.GainDB,
			Frequency:  f.Frequency,
			TargetLUFS: f.TargetLUFS,
		})
	}
	return p, nil
}

func jobToAPI(j *job.Job) Job {
	info := j.Info()
	out := Job{
		ID:        info.ID,
		Reference: j.Reference,
		State:     info.State,
		Stages:    make([]Stage, len(info.Stages)),
		Failure:   info.Failure,
		CreatedAt: info.CreatedAt.Unix(),
	}
	if info.Params != nil {
		out.Source = info.Params.Source
		out.Output = info.Params.Output
		for _, r := range info.Params.Regions {
			out.Regions = append(out.Regions, RegionIO{Start: timecode.Format(r.Start), End: timecode.Format(r.End)})
		}
		for _, f := range info.Params.Filters {
			out.Filters = append(out.Filters, FilterIO{
				Type:       string(f.Kind),
				Profile:    f.Profile,
				Amount:     f.Amount,
				GainDB:     f.GainDB,
				Frequency:  f.Frequency,
				TargetLUFS: f.TargetLUFS,
			})
		}
	}
	for i, st := range info.Stages {
		out.Stages[i] = Stage{
			Index:        st.Index,
			Name:         st.Name,
			Command:      append([]string{st.Program}, st.Args...),
			Intermediate: st.Intermediate,
		}
	}
	if info.StartedAt != nil {
		out.StartedAt = info.StartedAt.Unix()
	}
	if info.FinishedAt != nil {
		out.FinishedAt = info.FinishedAt.Unix()
	}

	if last, ok := j.Log().Last(); ok {
		out.LastEvent = last.Seq
	}
	// 最近一次进度
	events := j.Log().Since(0)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Progress != nil {
			out.Progress = progressToAPI(events[i].Stage, events[i].Progress.Elapsed, events[i].Progress.Total, events[i].Progress.Speed)
			break
		}
	}
	return out
}

func progressToAPI(stage int, elapsed, total time.Duration, speed float64) *Progress {
	p := &Progress{
		Stage:   stage,
		Elapsed: elapsed.Seconds(),
		Total:   total.Seconds(),
		Speed:   speed,
	}
	if total > 0 {
		p.Percent = min(100, 100*elapsed.Seconds()/total.Seconds())
	}
	return p
}

func eventToAPI(ev job.Event) Event {
	out := Event{
		Seq:     ev.Seq,
		Time:    ev.Time.UnixMilli(),
		Type:    string(ev.Type),
		Stage:   ev.Stage,
		State:   ev.State,
		Failure: ev.Failure,
	}
	if ev.Progress != nil {
		out.Progress = progressToAPI(ev.Stage, ev.Progress.Elapsed, ev.Progress.Total, ev.Progress.Speed)
	}
	if ev.Outcome != nil {
		out.Output = ev.Outcome.Output
		out.Size = ev.Outcome.Size
	}
	return out
}
