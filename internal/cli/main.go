// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

// Package cli implements cutctl, which runs one cut job in the foreground.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Main runs the cutctl command line
func Main() {
	_ = godotenv.Load()

	if err := NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRoot builds the command tree
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "cutctl",
		Short:        "Cut and filter media files with ffmpeg",
		SilenceUsage: true,
	}
	root.SilenceErrors = true
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.PersistentFlags().String("ffmpeg", getenvDefault("CUTMANAGER_FFMPEG", "ffmpeg"), "FFmpeg binary")
	root.PersistentFlags().String("log-level", getenvDefault("CUTMANAGER_LOG_LEVEL", "warn"), "Log level: debug, info, warn, error")

	root.AddCommand(newRunCommand(), newSkillsCommand())
	return root
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
