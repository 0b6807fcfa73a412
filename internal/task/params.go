// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package task

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ZSC714725/cutmanager/internal/timecode"
)

// Region is one [Start, End) span of the source to keep
type Region struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Length returns End-Start after millisecond rounding
func (r Region) Length() time.Duration {
	return timecode.Truncate(r.End) - timecode.Truncate(r.Start)
}

// FilterKind tags the variant held by a Filter
type FilterKind string

const (
	FilterNone           FilterKind = "none"
	FilterNoiseReduction FilterKind = "noise_reduction"
	FilterVolume         FilterKind = "volume"
	FilterHighpass       FilterKind = "highpass"
	FilterLowpass        FilterKind = "lowpass"
	FilterNormalize      FilterKind = "normalize"
)

// Filter is a tagged variant; only the fields of its Kind are meaningful
type Filter struct {
	Kind       FilterKind `json:"type"`
	Profile    string     `json:"profile,omitempty"`
	Amount     float64    `json:"amount,omitempty"`
	GainDB     float64    `json:"gain_db,omitempty"`
	Frequency  int        `json:"frequency,omitempty"`
	TargetLUFS float64    `json:"target_lufs,omitempty"`
}

func NoiseReduction(profile string, amount float64) Filter {
	return Filter{Kind: FilterNoiseReduction, Profile: profile, Amount: amount}
}

func Volume(gainDB float64) Filter { return Filter{Kind: FilterVolume, GainDB: gainDB} }

func Highpass(hz int) Filter { return Filter{Kind: FilterHighpass, Frequency: hz} }

func Lowpass(hz int) Filter { return Filter{Kind: FilterLowpass, Frequency: hz} }

func Normalize(lufs float64) Filter { return Filter{Kind: FilterNormalize, TargetLUFS: lufs} }

// FFmpegName is the ffmpeg audio filter implementing the variant, empty for
// variants that are not rendered into the filter graph.
func (f Filter) FFmpegName() string {
	switch f.Kind {
	case FilterVolume:
		return "volume"
	case FilterHighpass:
		return "highpass"
	case FilterLowpass:
		return "lowpass"
	case FilterNormalize:
		return "loudnorm"
	}
	return ""
}

// Expr renders the filter graph fragment for the variant
func (f Filter) Expr() string {
	switch f.Kind {
	case FilterVolume:
		return "volume=" + formatFloat(f.GainDB) + "dB"
	case FilterHighpass:
		return "highpass=f=" + strconv.Itoa(f.Frequency)
	case FilterLowpass:
		return "lowpass=f=" + strconv.Itoa(f.Frequency)
	case FilterNormalize:
		return "loudnorm=I=" + formatFloat(f.TargetLUFS) + ":TP=-1.5:LRA=11"
	}
	return ""
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Params is the immutable intent of one job
type Params struct {
	Source    string        `json:"source"`
	Regions   []Region      `json:"regions"`
	Filters   []Filter      `json:"filters"`
	Output    string        `json:"output"`
	Format    string        `json:"format"`
	Duration  time.Duration `json:"duration"` // 0 表示未知
	Overwrite bool          `json:"overwrite"`
	DropVideo bool          `json:"drop_video"`
	DropAudio bool          `json:"drop_audio"`
}

// Clone returns a deep copy
func (p *Params) Clone() *Params {
	c := *p
	c.Regions = append([]Region(nil), p.Regions...)
	c.Filters = append([]Filter(nil), p.Filters...)
	return &c
}

// OutputFormat resolves Format, falling back to the output extension
func (p *Params) OutputFormat() (Format, bool) {
	name := p.Format
	if name == "" {
		name = FormatFromPath(p.Output)
	}
	return LookupFormat(name)
}

// HasVideo reports whether the output carries a video stream
func (p *Params) HasVideo() bool {
	if p.DropVideo {
		return false
	}
	f, ok := p.OutputFormat()
	return !ok || !f.AudioOnly
}

// HasAudio reports whether the output carries an audio stream
func (p *Params) HasAudio() bool {
	return !p.DropAudio
}

// NoiseReduction returns the noise reduction filter if one is selected
func (p *Params) NoiseReduction() (Filter, bool) {
	for _, f := range p.Filters {
		if f.Kind == FilterNoiseReduction {
			return f, true
		}
	}
	return Filter{}, false
}

// AudioFilters returns the filters rendered into the ffmpeg audio chain, in order
func (p *Params) AudioFilters() []Filter {
	var out []Filter
	for _, f := range p.Filters {
		if f.FFmpegName() != "" {
			out = append(out, f)
		}
	}
	return out
}

// Total is the summed length of all regions
func (p *Params) Total() time.Duration {
	var total time.Duration
	for _, r := range p.Regions {
		total += r.Length()
	}
	return total
}

// Validate checks the request. The returned error is always a *ValidationError.
func (p *Params) Validate() error {
	if err := p.validatePaths(); err != nil {
		return err
	}

	f, ok := p.OutputFormat()
	if !ok {
		name := p.Format
		if name == "" {
			name = FormatFromPath(p.Output)
		}
		return invalid("format", "unsupported output format %q", name)
	}
	if !p.HasAudio() && (p.DropVideo || f.AudioOnly) {
		return invalid("streams", "output would contain no streams")
	}

	if err := p.validateRegions(); err != nil {
		return err
	}
	return p.validateFilters()
}

func (p *Params) validatePaths() error {
	if p.Source == "" {
		return invalid("source", "path is required")
	}
	fi, err := os.Stat(p.Source)
	if err != nil {
		return invalid("source", "cannot access %s", p.Source)
	}
	if !fi.Mode().IsRegular() {
		return invalid("source", "%s is not a regular file", p.Source)
	}

	if p.Output == "" {
		return invalid("output", "path is required")
	}
	if samePath(p.Source, p.Output) {
		return invalid("output", "output must differ from source")
	}
	dir, err := os.Stat(filepath.Dir(p.Output))
	if err != nil || !dir.IsDir() {
		return invalid("output", "directory %s does not exist", filepath.Dir(p.Output))
	}
	if _, err := os.Stat(p.Output); err == nil && !p.Overwrite {
		return invalid("output", "%s already exists", p.Output)
	}
	return nil
}

func (p *Params) validateRegions() error {
	if p.Duration < 0 {
		return invalid("duration", "must not be negative")
	}
	if len(p.Regions) == 0 {
		return invalid("regions", "at least one region is required")
	}

	for i, r := range p.Regions {
		field := "regions[" + strconv.Itoa(i) + "]"
		start, end := timecode.Truncate(r.Start), timecode.Truncate(r.End)
		if start < 0 {
			return invalid(field, "start must not be negative")
		}
		if end <= start {
			return invalid(field, "end %s is not after start %s", timecode.Format(end), timecode.Format(start))
		}
		if p.Duration > 0 && end > timecode.Truncate(p.Duration) {
			return invalid(field, "end %s is beyond source duration %s", timecode.Format(end), timecode.Format(p.Duration))
		}
		if i == 0 {
			continue
		}
		prev := p.Regions[i-1]
		if start < timecode.Truncate(prev.Start) {
			return invalid(field, "regions must be ordered by start")
		}
		if start < timecode.Truncate(prev.End) {
			return invalid(field, "overlaps regions[%d]", i-1)
		}
	}
	return nil
}

func (p *Params) validateFilters() error {
	seen := make(map[FilterKind]bool)
	highpass, lowpass := 0, 0

	for i, f := range p.Filters {
		field := "filters[" + strconv.Itoa(i) + "]"
		if f.Kind == FilterNone || f.Kind == "" {
			continue
		}
		if seen[f.Kind] {
			return invalid(field, "%s given more than once", f.Kind)
		}
		seen[f.Kind] = true

		if !p.HasAudio() {
			return invalid(field, "%s needs an audio stream", f.Kind)
		}

		switch f.Kind {
		case FilterNoiseReduction:
			if f.Profile == "" {
				return invalid(field, "noise profile is required")
			}
			if _, err := os.Stat(f.Profile); err != nil {
				return invalid(field, "cannot access noise profile %s", f.Profile)
			}
			if f.Amount <= 0 || f.Amount > 1 {
				return invalid(field, "amount %v out of range (0, 1]", f.Amount)
			}
		case FilterVolume:
			if f.GainDB < -60 || f.GainDB > 60 {
				return invalid(field, "gain %vdB out of range [-60, 60]", f.GainDB)
			}
		case FilterHighpass, FilterLowpass:
			if f.Frequency < 20 || f.Frequency > 20000 {
				return invalid(field, "frequency %dHz out of range [20, 20000]", f.Frequency)
			}
			if f.Kind == FilterHighpass {
				highpass = f.Frequency
			} else {
				lowpass = f.Frequency
			}
		case FilterNormalize:
			if f.TargetLUFS < -70 || f.TargetLUFS > -5 {
				return invalid(field, "target %v LUFS out of range [-70, -5]", f.TargetLUFS)
			}
		default:
			return invalid(field, "unknown filter %q", f.Kind)
		}
	}

	if highpass > 0 && lowpass > 0 && highpass >= lowpass {
		return invalid("filters", "highpass %dHz must be below lowpass %dHz", highpass, lowpass)
	}
	return nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
