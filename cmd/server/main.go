// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZSC714725/cutmanager/internal/api"
	"github.com/ZSC714725/cutmanager/internal/config"
	"github.com/ZSC714725/cutmanager/internal/ffmpeg"
	"github.com/ZSC714725/cutmanager/internal/job"
	"github.com/ZSC714725/cutmanager/internal/logger"
	"github.com/ZSC714725/cutmanager/internal/notify"
	"github.com/ZSC714725/cutmanager/internal/process"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CUTMANAGER_CONFIG"), "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	soxBin := flag.String("sox", "", "Noise reduction binary path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *soxBin != "" {
		cfg.Denoise.Path = *soxBin
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Log level: %v", err)
	}
	logger := logger.New(os.Stderr, "cutmanager", level)

	inValidator, err := ffmpeg.NewValidator(cfg.Jobs.InputAllow, append(cfg.Jobs.InputBlock, ffmpeg.DefaultBlock...))
	if err != nil {
		log.Fatalf("Input validator: %v", err)
	}
	outValidator, err := ffmpeg.NewValidator(cfg.Jobs.OutputAllow, append(cfg.Jobs.OutputBlock, ffmpeg.DefaultBlock...))
	if err != nil {
		log.Fatalf("Output validator: %v", err)
	}

	builder, err := ffmpeg.NewBuilder(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		Denoise:         ffmpeg.Denoise{Binary: cfg.Denoise.Path, Args: cfg.Denoise.Args},
		ValidatorInput:  inValidator,
		ValidatorOutput: outValidator,
	})
	if err != nil {
		log.Fatalf("FFmpeg init: %v", err)
	}

	// ffmpeg 能力探测失败不影响启动，只是跳过能力校验
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := builder.ReloadSkills(ctx); err != nil {
		logger.Error("%s, capabilities are not checked", err)
	} else {
		logger.Info("ffmpeg %s", builder.Skills().Version)
	}
	cancel()

	storeConfig := job.StoreConfig{
		Builder: builder,
		Runner: &process.Executor{
			Grace:     cfg.Jobs.GracePeriod(),
			TailLines: cfg.Jobs.TailLines,
			Logger:    logger,
		},
		TempDir:   cfg.Jobs.TempDir,
		MaxEvents: cfg.Jobs.MaxEvents,
		Logger:    logger,
	}
	if cfg.Notify.NatsURL != "" {
		n, err := notify.Connect(cfg.Notify.NatsURL, cfg.Notify.Subject)
		if err != nil {
			log.Fatalf("Notify: %v", err)
		}
		defer n.Close()
		storeConfig.Notifier = n
		logger.Info("publishing finished jobs to %s", cfg.Notify.NatsURL)
	}

	store := job.NewStore(storeConfig)
	handler := api.NewHandler(store, builder)

	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())
	handler.Register(r.Group("/api/v1"))

	srv := &http.Server{Addr: cfg.Server.Bind, Handler: r}
	go func() {
		logger.Info("CutManager listening on %s", cfg.Server.Bind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown: %s", err)
	}
	// 取消所有运行中的任务并等待清理完成
	store.Close()
}
