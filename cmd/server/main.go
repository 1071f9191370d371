package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meditateology/guide/internal/breathing"
	"github.com/meditateology/guide/internal/config"
	"github.com/meditateology/guide/internal/gemini"
	"github.com/meditateology/guide/internal/httpapi"
	"github.com/meditateology/guide/internal/observability"
	"github.com/meditateology/guide/internal/playback"
	"github.com/meditateology/guide/internal/script"
	"github.com/meditateology/guide/internal/session"
	"github.com/meditateology/guide/internal/speech"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("text_model", cfg.GeminiTextModel).
		Str("tts_model", cfg.GeminiTTSModel).
		Str("playback_sink", cfg.PlaybackSink).
		Bool("auto_narrate", cfg.AutoNarrate).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Meditation guide starting")

	checks := make(map[string]observability.HealthCheckFunc)

	// Collaborators stay nil without a key so the requesters serve their placeholders.
	var (
		textGen     script.TextGenerator
		synthesizer speech.Synthesizer
	)
	client, err := gemini.NewClient(context.Background(), cfg)
	switch {
	case errors.Is(err, gemini.ErrMissingAPIKey):
		logger.Warn().Msg("GEMINI_API_KEY is not set; script and narration will be served offline")
	case err != nil:
		logger.Fatal().Err(err).Msg("Failed to create Gemini client")
	default:
		textGen, synthesizer = client, client
		checks["gemini"] = client.Check
	}

	var sink playback.Sink
	switch cfg.PlaybackSink {
	case config.SinkTimer:
		sink = playback.TimerSink{}
	default:
		sink = playback.NewSpeakerSink(100 * time.Millisecond)
	}
	if checker, ok := sink.(playback.Checker); ok {
		checks["audio_output"] = checker.Check
	}

	scripts := script.NewRequester(textGen, logger)
	narrator := speech.NewRequester(synthesizer, cfg.SpeechMaxChars, logger)
	player := playback.NewController(sink, logger)
	sessions := session.NewManager(scripts, narrator, player, session.Options{AutoNarrate: cfg.AutoNarrate}, logger)
	cycle := breathing.NewCycle(time.Duration(cfg.BreathingPhaseSeconds)*time.Second, logger)

	api := httpapi.New(cfg, sessions, scripts, cycle, checks)
	if cfg.MetricsEnabled {
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. No write timeout: the breathing
	// websocket is long-lived and sets its own deadlines.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           api.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/v1/sessions", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Teardown force-stops any narration still playing.
	cycle.Stop()
	if err := sessions.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Session shutdown timed out")
	}

	logger.Info().Msg("Server exited gracefully")
}
