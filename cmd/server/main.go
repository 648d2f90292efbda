// Command server is agentrt's single process: it loads config, wires the
// skill registry, assembles the system prompt, and serves one websocket
// endpoint through which every session's full-duplex channel (spec §6) is
// opened, alongside admin HTTP endpoints for health and Prometheus metrics —
// the same shape as the teacher's orchestrator main.go (health/metrics
// brought up early on a shared admin mux, the primary listener started
// after, graceful shutdown on SIGINT/SIGTERM), with Temporal/gRPC/database
// bring-up replaced by this system's own dependencies.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fenced-run/agentrt/internal/config"
	"github.com/fenced-run/agentrt/internal/health"
	"github.com/fenced-run/agentrt/internal/llmprovider"
	"github.com/fenced-run/agentrt/internal/promptassembly"
	"github.com/fenced-run/agentrt/internal/session"
	"github.com/fenced-run/agentrt/internal/skills"
	"github.com/fenced-run/agentrt/internal/tracing"
	"github.com/fenced-run/agentrt/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	reloader, err := skills.NewReloader(cfg.Skills.Dirs, logger)
	if err != nil {
		logger.Fatal("failed to create skill reloader", zap.Error(err))
	}
	if err := reloader.Load(); err != nil {
		logger.Fatal("failed to load skills", zap.Error(err))
	}
	if err := reloader.Start(); err != nil {
		logger.Warn("skill hot-reload not watching", zap.Error(err))
	}
	defer reloader.Stop()
	logger.Info("skills loaded", zap.Int("count", reloader.Registry().Count()))

	systemPrompt, err := assembleSystemPrompt(cfg.Prompt.BaseTemplatePath, reloader.Registry())
	if err != nil {
		logger.Fatal("failed to assemble system prompt", zap.Error(err))
	}

	sinks := tracing.NewSinkRegistry()
	if err := tracing.Initialize(tracing.Config{Enabled: true, ServiceName: "agentrt"}, logger, sinks); err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	}

	hm := health.NewManager(logger)
	_ = hm.RegisterChecker(health.NewInterpreterHealthChecker())
	_ = hm.RegisterChecker(health.NewProviderConfigHealthChecker(
		func() string { return cfg.Provider.Model },
		func() string { return cfg.Provider.APIKey },
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := hm.Start(ctx); err != nil {
		logger.Warn("health manager failed to start", zap.Error(err))
	}

	adminMux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())
	adminServer := &http.Server{
		Addr:         cfg.Server.HealthAddr,
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("admin HTTP server listening", zap.String("addr", cfg.Server.HealthAddr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin HTTP server failed", zap.Error(err))
		}
	}()

	sessions := session.NewManager(logger, sinks)

	newSessionParams := func() session.NewSessionParams {
		chatClient, err := llmprovider.NewClient(cfg.Provider.Model, cfg.Provider.APIKey)
		if err != nil {
			logger.Error("failed to build chat client", zap.Error(err))
		}
		return session.NewSessionParams{
			ChatClient:   chatClient,
			SystemPrompt: systemPrompt,
			SkillGlobals: reloader.Registry().Globals(),
			MaxTurns:     cfg.Interaction.MaxTurns,
			RunCeiling:   cfg.Interaction.RunCeiling,
		}
	}

	handler := transport.NewHandler(sessions, logger, newSessionParams)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mainServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info("session server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := mainServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("session server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = mainServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
	_ = hm.Stop()
}

// buildLogger constructs a zap logger from LoggingConfig: "console" for a
// human-readable development encoder, anything else for JSON.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zcfg.Build()
}

// assembleSystemPrompt loads the base template from path and assembles it
// with every currently-loaded skill's snippet. A missing base template is
// fatal-by-caller: there is no default prompt this system can fall back to.
func assembleSystemPrompt(path string, registry *skills.SkillRegistry) (string, error) {
	base, err := promptassembly.LoadBaseTemplateFromFile(path)
	if err != nil {
		return "", err
	}
	return promptassembly.Assemble(base, promptassembly.SnippetsFromRegistry(registry))
}
