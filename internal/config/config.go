// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Denoise DenoiseConfig `yaml:"denoise"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Log     LogConfig     `yaml:"log"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path string `yaml:"path"`
}

// DenoiseConfig 降噪工具配置，args 支持 {input} {output} {profile} {amount}
type DenoiseConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

// JobsConfig 任务执行配置
type JobsConfig struct {
	TempDir            string   `yaml:"temp_dir"`
	GracePeriodSeconds int      `yaml:"grace_period_seconds"`
	TailLines          int      `yaml:"tail_lines"`
	MaxEvents          int      `yaml:"max_events"`
	InputAllow         []string `yaml:"input_allow"`
	InputBlock         []string `yaml:"input_block"`
	OutputAllow        []string `yaml:"output_allow"`
	OutputBlock        []string `yaml:"output_block"`
}

// GracePeriod 取消时等待进程退出的时间
func (j JobsConfig) GracePeriod() time.Duration {
	return time.Duration(j.GracePeriodSeconds) * time.Second
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// NotifyConfig NATS 通知配置，nats_url 为空时不启用
type NotifyConfig struct {
	NatsURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Bind: ":8080"},
		FFmpeg:  FFmpegConfig{Path: "ffmpeg"},
		Denoise: DenoiseConfig{Path: "sox"},
		Jobs: JobsConfig{
			TempDir:            os.TempDir(),
			GracePeriodSeconds: 5,
			TailLines:          20,
			MaxEvents:          500,
		},
		Log:    LogConfig{Level: "info"},
		Notify: NotifyConfig{Subject: "cutmanager.jobs.finished"},
	}
}

// Load 从 YAML 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 填充空值
func (c *Config) fill() {
	def := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = def.FFmpeg.Path
	}
	if c.Denoise.Path == "" {
		c.Denoise.Path = def.Denoise.Path
	}
	if c.Jobs.TempDir == "" {
		c.Jobs.TempDir = def.Jobs.TempDir
	}
	if c.Jobs.GracePeriodSeconds == 0 {
		c.Jobs.GracePeriodSeconds = def.Jobs.GracePeriodSeconds
	}
	if c.Jobs.TailLines == 0 {
		c.Jobs.TailLines = def.Jobs.TailLines
	}
	if c.Jobs.MaxEvents == 0 {
		c.Jobs.MaxEvents = def.Jobs.MaxEvents
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = def.Notify.Subject
	}
}

// Validate 检查数值范围
func (c *Config) Validate() error {
	if c.Jobs.GracePeriodSeconds < 0 {
		return fmt.Errorf("jobs.grace_period_seconds must not be negative")
	}
	if c.Jobs.TailLines < 0 {
		return fmt.Errorf("jobs.tail_lines must not be negative")
	}
	if c.Jobs.MaxEvents < 0 {
		return fmt.Errorf("jobs.max_events must not be negative")
	}
	return nil
}
