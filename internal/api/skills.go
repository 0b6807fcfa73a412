// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package api

import (
	"github.com/ZSC714725/cutmanager/internal/ffmpeg/skills"
	"github.com/ZSC714725/cutmanager/internal/task"
)

// SkillsItem is a named capability
type SkillsItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg struct {
		Version string `json:"version"`
	} `json:"ffmpeg"`

	Filters []SkillsItem `json:"filters"`

	Encoders struct {
		Audio []SkillsItem `json:"audio"`
		Video []SkillsItem `json:"video"`
	} `json:"encoders"`

	Formats struct {
		Demuxers []SkillsItem `json:"demuxers"`
		Muxers   []SkillsItem `json:"muxers"`
	} `json:"formats"`

	// 可用于 JobRequest.format 的输出格式
	Outputs []string `json:"outputs"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{
		Filters: []SkillsItem{},
		Outputs: task.FormatNames(),
	}
	resp.FFmpeg.Version = s.Version

	for _, f := range s.Filters {
		// 只列出音频滤镜
		if f.IO == "A->A" {
			resp.Filters = append(resp.Filters, SkillsItem{f.Id, f.Name})
		}
	}

	resp.Encoders.Audio = []SkillsItem{}
	resp.Encoders.Video = []SkillsItem{}
	for _, e := range s.Encoders {
		switch e.Type {
		case "A":
			resp.Encoders.Audio = append(resp.Encoders.Audio, SkillsItem{e.Id, e.Name})
		case "V":
			resp.Encoders.Video = append(resp.Encoders.Video, SkillsItem{e.Id, e.Name})
		}
	}

	resp.Formats.Demuxers = make([]SkillsItem, len(s.Formats.Demuxers))
	for i, f := range s.Formats.Demuxers {
		resp.Formats.Demuxers[i] = SkillsItem{f.Id, f.Name}
	}
	resp.Formats.Muxers = make([]SkillsItem, len(s.Formats.Muxers))
	for i, f := range s.Formats.Muxers {
		resp.Formats.Muxers[i] = SkillsItem{f.Id, f.Name}
	}

	return resp
}
