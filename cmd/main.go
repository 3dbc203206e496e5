package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/realtime-ai/wellness-call/pkg/call"
	"github.com/realtime-ai/wellness-call/pkg/config"
	"github.com/realtime-ai/wellness-call/pkg/llm"
	"github.com/realtime-ai/wellness-call/pkg/server"
	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/realtime-ai/wellness-call/pkg/telephony"
	"github.com/realtime-ai/wellness-call/pkg/trace"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := trace.Initialize(ctx, trace.Config{
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Exporter:       cfg.TraceExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		MetricInterval: cfg.MetricInterval,
	}); err != nil {
		log.Warn().Err(err).Msg("Telemetry disabled")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		trace.Shutdown(shutdownCtx)
	}()

	metrics, err := trace.NewMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Metrics disabled")
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("Some settings are not configured")
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLMProvider).Msg("Failed to create LLM provider")
	}

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.SessionStore).Msg("Failed to create session store")
	}
	defer closeStore()

	hub := server.NewEventHub()
	orch := call.NewOrchestrator(call.Config{
		Voice:                cfg.Voice,
		Language:             cfg.VoiceLanguage,
		MaxTranscriptEntries: cfg.MaxTranscriptEntries,
		SpeechTimeout:        cfg.SpeechTimeout,
		RetryTimeout:         cfg.RetryTimeout,
		CrisisHotline:        cfg.CrisisHotline,
	},
		store,
		call.NewAlertRegistry(),
		llm.NewDialogueGenerator(provider, metrics),
		llm.NewEmotionalClassifier(provider, metrics),
		call.WithObserver(hub),
		call.WithMetrics(metrics),
	)

	var dialer telephony.Dialer
	twilioDialer, err := telephony.NewTwilioDialer(telephony.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioNumber,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Outbound calls disabled")
	} else {
		dialer = twilioDialer
	}

	srv := server.New(server.Config{
		Addr:        ":" + cfg.Port,
		PublicURL:   cfg.PublicURL,
		UserNumber:  cfg.UserNumber,
		Environment: cfg.EnvironmentReport(),
	}, orch, dialer, hub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
	case "gemini":
		return llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionStore != "redis" {
		return session.NewMemoryStore(), func() {}, nil
	}

	store := session.NewRedisStore(session.NewRedisPool(cfg.RedisAddr), cfg.RedisSessionTTL)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}

	log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.RedisSessionTTL).Msg("Using Redis session store")
	return store, func() { store.Close() }, nil
}
