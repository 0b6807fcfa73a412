// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package skills

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var (
	reVersion = regexp.MustCompile(`^ffmpeg version ([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reFilter  = regexp.MustCompile(`^\s[TSC.]{3} ([0-9A-Za-z_]+)\s+([AVN|]+->[AVN|]+)\s+(.*)$`)
	reFormat  = regexp.MustCompile(`^\s([D ])([E ])[d ]?\s+([0-9A-Za-z_,]+)\s+(.*?)$`)
	reEncoder = regexp.MustCompile(`^\s([VAS])[F.][S.][X.][B.][D.] ([0-9A-Za-z_\-]+)\s+(.*)$`)
)

// Filter is an ffmpeg filter and its pad signature (e.g. "A->A")
type Filter struct {
	Id   string
	IO   string
	Name string
}

// Format is a muxer or demuxer
type Format struct {
	Id   string
	Name string
}

// Encoder is an encoder with its media type (V, A or S)
type Encoder struct {
	Id   string
	Type string
	Name string
}

// Skills are the detected capabilities of the installed ffmpeg
type Skills struct {
	Version  string
	Filters  []Filter
	Encoders []Encoder
	Formats  struct {
		Demuxers []Format
		Muxers   []Format
	}
}

// HasFilter reports whether ffmpeg knows the filter
func (s Skills) HasFilter(id string) bool {
	for _, f := range s.Filters {
		if f.Id == id {
			return true
		}
	}
	return false
}

// HasMuxer reports whether ffmpeg can write the container
func (s Skills) HasMuxer(id string) bool {
	for _, f := range s.Formats.Muxers {
		if f.Id == id {
			return true
		}
	}
	return false
}

// HasEncoder reports whether ffmpeg has the encoder
func (s Skills) HasEncoder(id string) bool {
	for _, e := range s.Encoders {
		if e.Id == id {
			return true
		}
	}
	return false
}

// Empty reports whether no capabilities were detected
func (s Skills) Empty() bool {
	return s.Version == ""
}

// New queries the binary for its version, filters, encoders and formats
func New(ctx context.Context, binary string) (Skills, error) {
	out, err := run(ctx, binary, "-version")
	if err != nil {
		return Skills{}, fmt.Errorf("can't run %s -version: %w", binary, err)
	}
	s := Skills{Version: ParseVersion(out)}
	if s.Version == "" {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}

	if out, err := run(ctx, binary, "-filters"); err == nil {
		s.Filters = ParseFilters(out)
	}
	if out, err := run(ctx, binary, "-encoders"); err == nil {
		s.Encoders = ParseEncoders(out)
	}
	if out, err := run(ctx, binary, "-formats"); err == nil {
		s.Formats.Demuxers, s.Formats.Muxers = ParseFormats(out)
	}
	return s, nil
}

func run(ctx context.Context, binary string, arg string) ([]byte, error) {
	args := []string{arg}
	if arg != "-version" {
		args = []string{"-hide_banner", arg}
	}
	return exec.CommandContext(ctx, binary, args...).Output()
}

// ParseVersion extracts "x.y.z" from `ffmpeg -version`
func ParseVersion(data []byte) string {
	m := reVersion.FindSubmatch(data)
	if m == nil {
		return ""
	}
	v := string(m[1])
	if len(m[2]) == 0 {
		v += ".0"
	}
	return v
}

// ParseFilters parses `ffmpeg -filters`
func ParseFilters(data []byte) []Filter {
	var filters []Filter
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := reFilter.FindStringSubmatch(scanner.Text()); m != nil {
			filters = append(filters, Filter{Id: m[1], IO: m[2], Name: strings.TrimSpace(m[3])})
		}
	}
	return filters
}

// ParseEncoders parses `ffmpeg -encoders`
func ParseEncoders(data []byte) []Encoder {
	var encoders []Encoder
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reEncoder.FindStringSubmatch(scanner.Text())
		if m == nil || m[2] == "=" {
			continue
		}
		encoders = append(encoders, Encoder{Id: m[2], Type: m[1], Name: strings.TrimSpace(m[3])})
	}
	return encoders
}

// ParseFormats parses `ffmpeg -formats` into demuxers and muxers. Entries
// listing several names ("mov,mp4,m4a") register every name. Both the two
// column layout and the one with a device column (ffmpeg 6.1+) are read.
func ParseFormats(data []byte) (demuxers, muxers []Format) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reFormat.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		for _, id := range strings.Split(m[3], ",") {
			format := Format{Id: id, Name: m[4]}
			if m[1] == "D" {
				demuxers = append(demuxers, format)
			}
			if m[2] == "E" {
				muxers = append(muxers, format)
			}
		}
	}
	return demuxers, muxers
}
