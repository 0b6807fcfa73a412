// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ZSC714725/cutmanager/internal/ffmpeg/skills"
	"github.com/ZSC714725/cutmanager/internal/task"
	"github.com/ZSC714725/cutmanager/internal/timecode"
)

// DefaultDenoiseArgs is the sox noisered invocation
var DefaultDenoiseArgs = []string{"-S", "{input}", "{output}", "noisered", "{profile}", "{amount}"}

// IntermediateName is the file the noise reduction stage writes into the
// job's scratch directory.
const IntermediateName = "denoise.wav"

// Denoise configures the secondary noise reduction tool. Args is a template;
// {input}, {output}, {profile} and {amount} are substituted per job.
type Denoise struct {
	Binary string
	Args   []string
}

// Config for the Builder
type Config struct {
	Binary          string
	Denoise         Denoise
	ValidatorInput  Validator
	ValidatorOutput Validator
}

// Builder turns job parameters into the ordered stages that implement them.
//
// Cutting always happens in a single ffmpeg stage: one region is cut with
// input seeking (-ss/-t), several regions with one trim/concat filter graph.
// A noise reduction filter adds a preceding stage running the secondary tool
// whose output replaces the audio input of the ffmpeg stage.
type Builder struct {
	binary       string
	denoise      Denoise
	validatorIn  Validator
	validatorOut Validator

	skills     skills.Skills
	skillsLock sync.RWMutex
}

// NewBuilder creates a Builder. Missing validators default to DefaultBlock.
func NewBuilder(config Config) (*Builder, error) {
	b := &Builder{
		binary:       config.Binary,
		denoise:      config.Denoise,
		validatorIn:  config.ValidatorInput,
		validatorOut: config.ValidatorOutput,
	}
	if b.binary == "" {
		b.binary = "ffmpeg"
	}
	if b.denoise.Binary == "" {
		b.denoise.Binary = "sox"
	}
	if len(b.denoise.Args) == 0 {
		b.denoise.Args = DefaultDenoiseArgs
	}

	var err error
	if b.validatorIn == nil {
		if b.validatorIn, err = NewValidator(nil, DefaultBlock); err != nil {
			return nil, err
		}
	}
	if b.validatorOut == nil {
		if b.validatorOut, err = NewValidator(nil, DefaultBlock); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Binary returns the ffmpeg program name
func (b *Builder) Binary() string {
	return b.binary
}

// Skills returns the detected ffmpeg capabilities, empty if never loaded
func (b *Builder) Skills() skills.Skills {
	b.skillsLock.RLock()
	defer b.skillsLock.RUnlock()
	return b.skills
}

// SetSkills replaces the capabilities used for validation
func (b *Builder) SetSkills(s skills.Skills) {
	b.skillsLock.Lock()
	b.skills = s
	b.skillsLock.Unlock()
}

// ReloadSkills queries the ffmpeg binary again
func (b *Builder) ReloadSkills(ctx context.Context) error {
	s, err := skills.New(ctx, b.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	b.SetSkills(s)
	return nil
}

// Validate checks p against the parameter rules, the path validators and,
// when known, the ffmpeg capabilities.
func (b *Builder) Validate(p *task.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !b.validatorIn.IsValid(p.Source) {
		return &task.ValidationError{Field: "source", Reason: "path is not allowed"}
	}
	if !b.validatorOut.IsValid(p.Output) {
		return &task.ValidationError{Field: "output", Reason: "path is not allowed"}
	}
	if nr, ok := p.NoiseReduction(); ok && !b.validatorIn.IsValid(nr.Profile) {
		return &task.ValidationError{Field: "filters", Reason: "noise profile path is not allowed"}
	}

	sk := b.Skills()
	if sk.Empty() {
		return nil
	}

	f, _ := p.OutputFormat()
	if len(sk.Formats.Muxers) > 0 && !sk.HasMuxer(f.Muxer) {
		return &task.ValidationError{Field: "format", Reason: "ffmpeg cannot write " + f.Muxer}
	}
	var codecs []string
	if p.HasVideo() {
		codecs = append(codecs, codecOf(f.VideoArgs))
	}
	if p.HasAudio() {
		codecs = append(codecs, codecOf(f.AudioArgs))
	}
	for _, c := range codecs {
		if c != "" && len(sk.Encoders) > 0 && !sk.HasEncoder(c) {
			return &task.ValidationError{Field: "format", Reason: "ffmpeg has no encoder " + c}
		}
	}
	for _, af := range p.AudioFilters() {
		if len(sk.Filters) > 0 && !sk.HasFilter(af.FFmpegName()) {
			return &task.ValidationError{Field: "filters", Reason: "ffmpeg has no filter " + af.FFmpegName()}
		}
	}
	return nil
}

func codecOf(args []string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-c:v" || args[i] == "-c:a" {
			return args[i+1]
		}
	}
	return ""
}

// Build validates p and returns its stages. Intermediate files are placed
// under scratch, which the caller owns. The result only depends on p and
// scratch.
func (b *Builder) Build(p *task.Params, scratch string) ([]task.Stage, error) {
	if err := b.Validate(p); err != nil {
		return nil, err
	}

	var stages []task.Stage
	audioInput := p.Source

	if nr, ok := p.NoiseReduction(); ok {
		out := filepath.Join(scratch, IntermediateName)
		stages = append(stages, task.Stage{
			Index:        0,
			Name:         "denoise",
			Program:      b.denoise.Binary,
			Args:         b.denoiseArgs(b.denoiseInput(p.Source), out, nr),
			Input:        p.Source,
			Output:       out,
			Intermediate: true,
			Duration:     p.Duration,
		})
		audioInput = out
	}

	stages = append(stages, task.Stage{
		Index:    len(stages),
		Name:     "transcode",
		Program:  b.binary,
		Args:     b.transcodeArgs(p, audioInput),
		Input:    audioInput,
		Output:   p.Output,
		Duration: p.Total(),
	})
	return stages, nil
}

// extensions sox opens without an external decoder
var soxInputs = map[string]bool{
	".wav": true, ".flac": true, ".mp3": true, ".ogg": true,
	".oga": true, ".aif": true, ".aiff": true, ".au": true,
}

// denoiseInput is the {input} of the denoise stage. sox cannot open video
// containers, so it reads the decoded audio from an ffmpeg pipe ("|cmd").
func (b *Builder) denoiseInput(src string) string {
	name := strings.TrimSuffix(filepath.Base(b.denoise.Binary), ".exe")
	if name != "sox" || soxInputs[strings.ToLower(filepath.Ext(src))] {
		return src
	}
	return "|" + shellQuote(b.binary) + " -v error -nostdin -i " + shellQuote(src) + " -map 0:a:0 -f wav -"
}

// sox 通过 popen 执行管道输入
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (b *Builder) denoiseArgs(in, out string, f task.Filter) []string {
	r := strings.NewReplacer(
		"{input}", in,
		"{output}", out,
		"{profile}", f.Profile,
		"{amount}", strconv.FormatFloat(f.Amount, 'f', -1, 64),
	)
	args := make([]string, len(b.denoise.Args))
	for i, a := range b.denoise.Args {
		args[i] = r.Replace(a)
	}
	return args
}

func (b *Builder) transcodeArgs(p *task.Params, audioInput string) []string {
	args := make([]string, 0, 48)

	// --- Preamble ---
	args = append(args, "-hide_banner", "-nostdin", "-stats")
	if p.Overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}

	hasVideo, hasAudio := p.HasVideo(), p.HasAudio()
	split := audioInput != p.Source

	var seek []string
	if len(p.Regions) == 1 {
		r := p.Regions[0]
		seek = []string{"-ss", timecode.Format(r.Start), "-t", timecode.Format(r.Length())}
	}

	// --- Inputs ---
	videoIn, audioIn := "0", "0"
	if split {
		if hasVideo {
			args = append(args, seek...)
			args = append(args, "-i", p.Source)
			audioIn = "1"
		}
		args = append(args, seek...)
		args = append(args, "-i", audioInput)
	} else {
		args = append(args, seek...)
		args = append(args, "-i", p.Source)
	}

	// --- Cuts, filters and maps ---
	chain := audioChain(p)
	if len(p.Regions) == 1 {
		if hasVideo {
			args = append(args, "-map", videoIn+":v:0?")
		}
		if hasAudio {
			audioMap := audioIn + ":a:0"
			if !split {
				audioMap += "?"
			}
			args = append(args, "-map", audioMap)
			if chain != "" {
				args = append(args, "-af", chain)
			}
		}
	} else {
		graph, maps := concatGraph(p.Regions, videoIn, audioIn, hasVideo, hasAudio, chain)
		args = append(args, "-filter_complex", graph)
		args = append(args, maps...)
	}

	// --- Codecs and container ---
	f, _ := p.OutputFormat()
	if hasVideo {
		args = append(args, f.VideoArgs...)
	}
	if hasAudio {
		args = append(args, f.AudioArgs...)
	}
	args = append(args, f.Extra...)
	args = append(args, "-f", f.Muxer, p.Output)

	return args
}

func audioChain(p *task.Params) string {
	var parts []string
	for _, f := range p.AudioFilters() {
		parts = append(parts, f.Expr())
	}
	return strings.Join(parts, ",")
}

// concatGraph renders every region as a trim/atrim branch and joins them
// with concat; the audio chain is applied after concatenation.
func concatGraph(regions []task.Region, videoIn, audioIn string, hasVideo, hasAudio bool, chain string) (string, []string) {
	var parts []string
	var concatIn strings.Builder

	for i, r := range regions {
		start, end := timecode.Seconds(r.Start), timecode.Seconds(r.End)
		if hasVideo {
			parts = append(parts, fmt.Sprintf("[%s:v:0]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d]", videoIn, start, end, i))
			fmt.Fprintf(&concatIn, "[v%d]", i)
		}
		if hasAudio {
			parts = append(parts, fmt.Sprintf("[%s:a:0]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d]", audioIn, start, end, i))
			fmt.Fprintf(&concatIn, "[a%d]", i)
		}
	}

	v, a := 0, 0
	var outs string
	var maps []string
	if hasVideo {
		v = 1
		outs += "[vout]"
		maps = append(maps, "-map", "[vout]")
	}
	if hasAudio {
		a = 1
		if chain != "" {
			outs += "[acat]"
		} else {
			outs += "[aout]"
		}
		maps = append(maps, "-map", "[aout]")
	}

	parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=%d:a=%d%s", concatIn.String(), len(regions), v, a, outs))
	if hasAudio && chain != "" {
		parts = append(parts, "[acat]"+chain+"[aout]")
	}
	return strings.Join(parts, ";"), maps
}
