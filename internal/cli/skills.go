// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ZSC714725/cutmanager/internal/ffmpeg/skills"
	"github.com/ZSC714725/cutmanager/internal/task"

	"github.com/spf13/cobra"
)

// filters the audio chain may render
var chainFilters = []string{"volume", "highpass", "lowpass", "loudnorm"}

func newSkillsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "Show which output formats and filters the installed ffmpeg supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bin, _ := cmd.Flags().GetString("ffmpeg")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			sk, err := skills.New(ctx, bin)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ffmpeg %s\n\nformats:\n", sk.Version)
			for _, name := range task.FormatNames() {
				f, _ := task.LookupFormat(name)
				fmt.Fprintf(w, "  %-6s %s\n", name, mark(sk.HasMuxer(f.Muxer)))
			}
			fmt.Fprintln(w, "\nfilters:")
			for _, name := range chainFilters {
				fmt.Fprintf(w, "  %-9s %s\n", name, mark(sk.HasFilter(name)))
			}
			return nil
		},
	}
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
