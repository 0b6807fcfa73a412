// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

// Package parse extracts progress from the diagnostic output of ffmpeg and sox.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Progress is the position reported by one diagnostic line
type Progress struct {
	Elapsed time.Duration `json:"elapsed"`
	Total   time.Duration `json:"total,omitempty"` // 0 表示行内未给出
	Speed   float64       `json:"speed,omitempty"`
}

var re = struct {
	time      *regexp.Regexp
	speed     *regexp.Regexp
	outTimeUs *regexp.Regexp
	outTime   *regexp.Regexp
	sox       *regexp.Regexp
}{
	time:      regexp.MustCompile(`(?:^|\s)time=\s*(-?[0-9]+):([0-9]{2}):([0-9]{2}(?:\.[0-9]+)?)`),
	speed:     regexp.MustCompile(`speed=\s*([0-9]+(?:\.[0-9]+)?)x`),
	outTimeUs: regexp.MustCompile(`^out_time_(?:us|ms)=\s*([0-9]+)\s*$`), // out_time_ms 实为微秒
	outTime:   regexp.MustCompile(`^out_time=\s*([0-9]+):([0-9]{2}):([0-9]{2}(?:\.[0-9]+)?)\s*$`),
	sox:       regexp.MustCompile(`^\s*In:\s*[0-9.]+%\s+([0-9]+):([0-9]{2}):([0-9]{2}(?:\.[0-9]+)?)\s+\[([0-9]+):([0-9]{2}):([0-9]{2}(?:\.[0-9]+)?)\]`),
}

// Parse returns the progress reported by line. Lines without a usable
// position, including "time=N/A", report false.
func Parse(line string) (Progress, bool) {
	if !strings.Contains(line, "time") && !strings.Contains(line, "In:") {
		return Progress{}, false
	}

	if m := re.outTimeUs.FindStringSubmatch(line); m != nil {
		us, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Progress{}, false
		}
		return Progress{Elapsed: time.Duration(us) * time.Microsecond}, true
	}
	if m := re.outTime.FindStringSubmatch(line); m != nil {
		d, ok := clock(m[1], m[2], m[3])
		return Progress{Elapsed: d}, ok
	}
	if m := re.sox.FindStringSubmatch(line); m != nil {
		elapsed, ok1 := clock(m[1], m[2], m[3])
		remaining, ok2 := clock(m[4], m[5], m[6])
		if !ok1 || !ok2 {
			return Progress{}, false
		}
		return Progress{Elapsed: elapsed, Total: elapsed + remaining}, true
	}

	m := re.time.FindStringSubmatch(line)
	if m == nil || strings.HasPrefix(m[1], "-") {
		// 开始时 ffmpeg 可能输出负的 time
		return Progress{}, false
	}
	d, ok := clock(m[1], m[2], m[3])
	if !ok {
		return Progress{}, false
	}
	p := Progress{Elapsed: d}
	if s := re.speed.FindStringSubmatch(line); s != nil {
		if x, err := strconv.ParseFloat(s[1], 64); err == nil {
			p.Speed = x
		}
	}
	return p, true
}

func clock(h, m, s string) (time.Duration, bool) {
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm > 59 {
		return 0, false
	}
	sec, frac, _ := strings.Cut(s, ".")
	ss, err := strconv.Atoi(sec)
	if err != nil || ss > 59 {
		return 0, false
	}

	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
	if frac != "" {
		// 截断到纳秒
		if len(frac) > 9 {
			frac = frac[:9]
		}
		n, err := strconv.Atoi(frac)
		if err != nil {
			return 0, false
		}
		for i := len(frac); i < 9; i++ {
			n *= 10
		}
		d += time.Duration(n)
	}
	return d, true
}
