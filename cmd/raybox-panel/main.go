package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"raybox-panel/internal/api"
	"raybox-panel/internal/config"
	"raybox-panel/internal/events"
	"raybox-panel/internal/job"
	"raybox-panel/internal/monitor"
	"raybox-panel/internal/settings"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setupLogger(cfg.Logging)

	settingsPath := cfg.Storage.SettingsPath
	if settingsPath == "" {
		settingsPath, err = settings.DefaultPath()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to resolve settings path")
		}
	}
	jobsPath := cfg.Storage.JobsPath
	if jobsPath == "" {
		jobsPath = filepath.Join(filepath.Dir(settingsPath), "jobs.json")
	}

	settingsStore := settings.NewStore(settingsPath)
	if err := settingsStore.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load settings")
	}

	jobStore := job.NewStore(jobsPath)
	if err := jobStore.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load job history")
	}

	hub := events.NewHub()
	hub.Start()
	defer hub.Stop()

	mon := monitor.New(jobStore, hub, monitor.Config{
		PollInterval: cfg.Monitor.PollInterval,
		ErrorBackoff: cfg.Monitor.ErrorBackoff,
	})
	defer mon.Stop()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := api.NewRouter(api.Deps{
		Config:   cfg,
		Settings: settingsStore,
		Jobs:     jobStore,
		Monitor:  mon,
		Hub:      hub,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("jobs", jobsPath).Msg("raybox-panel listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	mon.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func setupLogger(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
