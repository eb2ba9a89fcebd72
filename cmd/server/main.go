package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobcraftai/interview-engine/internal/config"
	"github.com/jobcraftai/interview-engine/internal/gateway"
	"github.com/jobcraftai/interview-engine/internal/observability"
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
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interview Engine Service starting")

	mux := http.NewServeMux()

	// Host UI WebSocket endpoints: one connection drives one session.
	// /sessions/interview runs the scripted agenda flow; /sessions/live
	// proxies the realtime AI-interviewer mode.
	mux.HandleFunc("/sessions/interview", gateway.HandleInterviewWS(cfg))
	mux.HandleFunc("/sessions/live", gateway.HandleLiveWS(cfg))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness reports which optional capabilities are configured. The
	// engine degrades gracefully without them (placeholder audio, no
	// transcripts), so a missing key is reported but not fatal.
	checks := map[string]observability.HealthCheckFunc{
		"synthesis": func(ctx context.Context) (bool, error) {
			if cfg.TTSAPIKey == "" {
				return false, fmt.Errorf("speech synthesis is not configured")
			}
			return true, nil
		},
		"transcription": func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("answer transcription is not configured")
			}
			return true, nil
		},
		"realtime": func(ctx context.Context) (bool, error) {
			if cfg.RealtimeURL == "" {
				return false, fmt.Errorf("realtime session is not configured")
			}
			return true, nil
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		endpoint := fmt.Sprintf("ws://localhost:%s/sessions/interview", cfg.Port)
		if cfg.PublicURL != "" {
			endpoint = cfg.PublicURL + "/sessions/interview"
		}
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", endpoint).
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
