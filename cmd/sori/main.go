package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sorivoice/sori/adapters/audio"
	"github.com/sorivoice/sori/adapters/speechapi"
	"github.com/sorivoice/sori/domain/repositories"
	"github.com/sorivoice/sori/internal/api"
	"github.com/sorivoice/sori/internal/chatlog"
	"github.com/sorivoice/sori/internal/client"
	"github.com/sorivoice/sori/internal/config"
	"github.com/sorivoice/sori/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	source := flag.String("source", "arecord", "audio source: arecord, stdin, tone or mock")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Configuration error", zap.Error(err))
	}

	logger := newLogger(cfg.Logging)
	defer logger.Sync()

	// Chat log persistence
	store, err := chatlog.Open(cfg.Storage.ChatLogPath)
	if err != nil {
		logger.Fatal("Chat log store unavailable", zap.Error(err))
	}

	registry := prometheus.NewRegistry()

	cl, err := client.New(cfg, client.Deps{
		Logger:   logger,
		Store:    store,
		Recorder: newRecorder(*source, logger),
		Metrics:  metrics.New(registry),
	})
	if err != nil {
		logger.Fatal("Client initialization failed", zap.Error(err))
	}

	// Report backend engine availability once at startup. The client runs
	// regardless; a missing engine only degrades features.
	reportModels(cfg, logger)

	cl.Start()

	// Local control surface
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	api.InitRoutes(e, cl, registry, logger)

	go func() {
		if err := e.Start(cfg.HTTP.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Control surface failed", zap.Error(err))
		}
	}()

	logger.Info("Voice client started",
		zap.String("conversational", cfg.Server.ConversationalURL),
		zap.String("streaming", cfg.Server.StreamingURL),
		zap.Bool("streamingEnabled", cfg.Audio.StreamingEnabled),
		zap.String("controlAddr", cfg.HTTP.ListenAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Warn("Control surface shutdown forced", zap.Error(err))
	}
	if err := cl.Close(); err != nil {
		logger.Warn("Client shutdown reported an error", zap.Error(err))
	}

	logger.Info("Bye")
}

func newLogger(cfg config.LoggingConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewExample()
	}
	return logger
}

func newRecorder(source string, logger *zap.Logger) repositories.Recorder {
	switch source {
	case "stdin":
		return audio.NewWavRecorder(audio.Stdin(), logger)
	case "tone":
		return audio.NewWavRecorder(audio.Tone(), logger)
	case "mock":
		return audio.NewMockRecorder(logger)
	default:
		return audio.NewWavRecorder(audio.ARecord(), logger)
	}
}

func reportModels(cfg *config.Config, logger *zap.Logger) {
	speech, err := speechapi.NewClient(speechapi.Config{
		BaseURL: cfg.Server.APIBaseURL,
		Timeout: 10 * time.Second,
	}, logger)
	if err != nil {
		logger.Warn("Speech API client unavailable", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	status, err := speech.Models(ctx)
	if err != nil {
		logger.Warn("Could not query speech engine status", zap.Error(err))
		return
	}
	logger.Info("Speech engines",
		zap.Bool("tts", status.TTSAvailable),
		zap.Bool("stt", status.STTAvailable))
}
