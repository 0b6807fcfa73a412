// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZSC714725/cutmanager/internal/ffmpeg"
	"github.com/ZSC714725/cutmanager/internal/job"
	"github.com/ZSC714725/cutmanager/internal/logger"
	"github.com/ZSC714725/cutmanager/internal/process"
	"github.com/ZSC714725/cutmanager/internal/task"
	"github.com/ZSC714725/cutmanager/internal/timecode"

	"github.com/lithammer/shortuuid/v4"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one job and wait for it",
		Example: `  cutctl run --source in.mp4 --output out.mp4 --cut 00:01:00-00:01:30
  cutctl run --source talk.mkv --output talk.mp3 --cut 10-20 --cut 35.5-40 \
      --noise-profile noise.prof --normalize -16`,
		Args: cobra.NoArgs,
		RunE: runJob,
	}

	f := cmd.Flags()
	f.String("source", "", "Source media file")
	f.String("output", "", "Output file")
	f.StringArray("cut", nil, "Region START-END to keep, repeatable")
	f.String("format", "", "Output format, derived from the output extension if empty")
	f.String("duration", "", "Source duration, enables range checks")
	f.Bool("overwrite", false, "Replace an existing output")
	f.Bool("drop-video", false, "Omit the video stream")
	f.Bool("drop-audio", false, "Omit the audio stream")

	f.Float64("volume", 0, "Gain in dB")
	f.Int("highpass", 0, "Highpass cutoff in Hz")
	f.Int("lowpass", 0, "Lowpass cutoff in Hz")
	f.Float64("normalize", 0, "Loudness target in LUFS")
	f.String("noise-profile", "", "Noise profile for noise reduction")
	f.Float64("noise-amount", 0.21, "Noise reduction amount (0, 1]")

	f.String("sox", getenvDefault("CUTMANAGER_SOX", "sox"), "Noise reduction binary")
	f.String("temp-dir", os.TempDir(), "Directory for intermediate files")
	f.Duration("grace", 5*time.Second, "Time a cancelled process gets before it is killed")

	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("cut")
	return cmd
}

func runJob(cmd *cobra.Command, _ []string) error {
	p, err := paramsFromFlags(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	ffmpegBin, _ := cmd.Flags().GetString("ffmpeg")
	soxBin, _ := cmd.Flags().GetString("sox")
	tempDir, _ := cmd.Flags().GetString("temp-dir")
	grace, _ := cmd.Flags().GetDuration("grace")

	builder, err := ffmpeg.NewBuilder(ffmpeg.Config{
		Binary:  ffmpegBin,
		Denoise: ffmpeg.Denoise{Binary: soxBin},
	})
	if err != nil {
		return err
	}

	c := job.New(shortuuid.New(), job.Deps{
		Builder: builder,
		Runner:  &process.Executor{Grace: grace, Logger: log},
		TempDir: tempDir,
		Logger:  log,
	})
	if err := c.Submit(p); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(); err != nil {
		return err
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Cancel()
		case <-c.Done():
		}
	}()

	stages := c.Stages()
	for ev := range c.Events() {
		printEvent(cmd.ErrOrStderr(), ev, stages)
	}

	if err := c.Err(); err != nil {
		var se *process.StageError
		if errors.As(err, &se) && len(se.Tail) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), strings.Join(se.Tail, "\n"))
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), p.Output)
	return nil
}

func printEvent(w io.Writer, ev job.Event, stages []task.Stage) {
	name := ""
	if ev.Stage < len(stages) {
		name = stages[ev.Stage].Name
	}

	switch ev.Type {
	case job.EventStageStarted:
		fmt.Fprintf(w, "[%d/%d] %s: %s\n", ev.Stage+1, len(stages), name, stages[ev.Stage].CommandLine())
	case job.EventProgress:
		pr := ev.Progress
		line := fmt.Sprintf("%s %s", name, timecode.Format(pr.Elapsed))
		if pr.Total > 0 {
			line += fmt.Sprintf(" / %s (%.1f%%)", timecode.Format(pr.Total), min(100, 100*pr.Elapsed.Seconds()/pr.Total.Seconds()))
		}
		if pr.Speed > 0 {
			line += fmt.Sprintf(" %.2fx", pr.Speed)
		}
		fmt.Fprintln(w, line)
	case job.EventStageCompleted:
		fmt.Fprintf(w, "%s done in %s\n", name, ev.Outcome.Duration.Round(time.Millisecond))
	case job.EventSucceeded, job.EventFailed, job.EventCancelled:
		fmt.Fprintf(w, "job %s\n", ev.State)
	}
}

func paramsFromFlags(cmd *cobra.Command) (*task.Params, error) {
	f := cmd.Flags()
	p := &task.Params{}
	p.Source, _ = f.GetString("source")
	p.Output, _ = f.GetString("output")
	p.Format, _ = f.GetString("format")
	p.Overwrite, _ = f.GetBool("overwrite")
	p.DropVideo, _ = f.GetBool("drop-video")
	p.DropAudio, _ = f.GetBool("drop-audio")

	if s, _ := f.GetString("duration"); s != "" {
		d, err := timecode.Parse(s)
		if err != nil {
			return nil, &task.ValidationError{Field: "duration", Reason: err.Error()}
		}
		p.Duration = d
	}

	cuts, _ := f.GetStringArray("cut")
	for i, c := range cuts {
		r, err := parseCut(c)
		if err != nil {
			return nil, &task.ValidationError{Field: fmt.Sprintf("regions[%d]", i), Reason: err.Error()}
		}
		p.Regions = append(p.Regions, r)
	}

	if profile, _ := f.GetString("noise-profile"); profile != "" {
		amount, _ := f.GetFloat64("noise-amount")
		p.Filters = append(p.Filters, task.NoiseReduction(profile, amount))
	}
	if f.Changed("volume") {
		v, _ := f.GetFloat64("volume")
		p.Filters = append(p.Filters, task.Volume(v))
	}
	if f.Changed("highpass") {
		v, _ := f.GetInt("highpass")
		p.Filters = append(p.Filters, task.Highpass(v))
	}
	if f.Changed("lowpass") {
		v, _ := f.GetInt("lowpass")
		p.Filters = append(p.Filters, task.Lowpass(v))
	}
	if f.Changed("normalize") {
		v, _ := f.GetFloat64("normalize")
		p.Filters = append(p.Filters, task.Normalize(v))
	}
	return p, nil
}

// parseCut reads "START-END"
func parseCut(s string) (task.Region, error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return task.Region{}, fmt.Errorf("%q is not START-END", s)
	}
	start, err := timecode.Parse(a)
	if err != nil {
		return task.Region{}, err
	}
	end, err := timecode.Parse(b)
	if err != nil {
		return task.Region{}, err
	}
	return task.Region{Start: start, End: end}, nil
}

func newLogger(cmd *cobra.Command) (logger.Logger, error) {
	s, _ := cmd.Flags().GetString("log-level")
	level, err := logger.ParseLevel(s)
	if err != nil {
		return nil, err
	}
	return logger.New(cmd.ErrOrStderr(), "cutctl", level), nil
}
