// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具
//
// Package timecode renders and parses media timestamps with millisecond
// precision in the forms ffmpeg accepts on its command line.

package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned for strings that are not a timestamp
var ErrInvalid = errors.New("invalid timestamp")

// Truncate rounds d to the nearest millisecond
func Truncate(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

// Format renders d as HH:MM:SS.mmm. Negative durations render as zero.
func Format(d time.Duration) string {
	d = Truncate(d)
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3600000
	m := ms / 60000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// Seconds renders d as fractional seconds with three decimals, the form
// used inside filter graphs where ':' separates options.
func Seconds(d time.Duration) string {
	d = Truncate(d)
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return strconv.FormatInt(ms/1000, 10) + "." + fmt.Sprintf("%03d", ms%1000)
}

// Parse accepts "HH:MM:SS.fff", "MM:SS.fff" and "SS.fff" (fraction
// optional) and returns the duration rounded to the millisecond.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalid
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	secPart := parts[len(parts)-1]
	whole, frac, _ := strings.Cut(secPart, ".")
	sec, err := parseUint(whole)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if len(parts) > 1 && sec >= 60 {
		return 0, fmt.Errorf("%w: seconds out of range in %q", ErrInvalid, s)
	}

	var nanos int64
	if frac != "" {
		if _, err := parseUint(frac); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		// 只保留到纳秒精度
		if len(frac) > 9 {
			frac = frac[:9]
		}
		n, _ := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		nanos = n
	} else if strings.HasSuffix(secPart, ".") {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	total := time.Duration(sec)*time.Second + time.Duration(nanos)

	if len(parts) >= 2 {
		m, err := parseUint(parts[len(parts)-2])
		if err != nil || (len(parts) == 3 && m >= 60) {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		total += time.Duration(m) * time.Minute
	}
	if len(parts) == 3 {
		h, err := parseUint(parts[0])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		total += time.Duration(h) * time.Hour
	}

	return Truncate(total), nil
}

func parseUint(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalid
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalid
		}
	}
	return strconv.ParseInt(s, 10, 64)
}
