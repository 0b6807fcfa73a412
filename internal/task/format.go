// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package task

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format describes an output container and the codec flags used for it
type Format struct {
	Name      string
	Muxer     string
	VideoArgs []string
	AudioArgs []string
	Extra     []string
	AudioOnly bool
}

var formats = map[string]Format{
	"mp4": {
		Name: "mp4", Muxer: "mp4",
		VideoArgs: []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "20"},
		AudioArgs: []string{"-c:a", "aac", "-b:a", "192k"},
		Extra:     []string{"-movflags", "+faststart"},
	},
	"mov": {
		Name: "mov", Muxer: "mov",
		VideoArgs: []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "20"},
		AudioArgs: []string{"-c:a", "aac", "-b:a", "192k"},
	},
	"mkv": {
		Name: "mkv", Muxer: "matroska",
		VideoArgs: []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "20"},
		AudioArgs: []string{"-c:a", "aac", "-b:a", "192k"},
	},
	"webm": {
		Name: "webm", Muxer: "webm",
		VideoArgs: []string{"-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "32"},
		AudioArgs: []string{"-c:a", "libopus", "-b:a", "128k"},
	},
	"mp3": {
		Name: "mp3", Muxer: "mp3", AudioOnly: true,
		AudioArgs: []string{"-c:a", "libmp3lame", "-q:a", "2"},
	},
	"m4a": {
		Name: "m4a", Muxer: "ipod", AudioOnly: true,
		AudioArgs: []string{"-c:a", "aac", "-b:a", "192k"},
	},
	"wav": {
		Name: "wav", Muxer: "wav", AudioOnly: true,
		AudioArgs: []string{"-c:a", "pcm_s16le"},
	},
	"flac": {
		Name: "flac", Muxer: "flac", AudioOnly: true,
		AudioArgs: []string{"-c:a", "flac"},
	},
	"ogg": {
		Name: "ogg", Muxer: "ogg", AudioOnly: true,
		AudioArgs: []string{"-c:a", "libvorbis", "-q:a", "5"},
	},
	"opus": {
		Name: "opus", Muxer: "opus", AudioOnly: true,
		AudioArgs: []string{"-c:a", "libopus", "-b:a", "128k"},
	},
}

// LookupFormat returns the registered format by name (case insensitive)
func LookupFormat(name string) (Format, bool) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// FormatFromPath derives the format name from a file extension
func FormatFromPath(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// FormatNames lists the registered formats in sorted order
func FormatNames() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
