// Package server exposes the wellness-call HTTP surface: the alert and
// trigger endpoints, the Twilio voice webhooks, status pages and the live
// event feed.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/realtime-ai/wellness-call/pkg/call"
	"github.com/realtime-ai/wellness-call/pkg/telephony"
	"github.com/rs/zerolog/log"
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address (e.g., ":3000")
	Addr string

	// PublicURL is the base URL Twilio uses to reach the webhooks.
	PublicURL string

	// UserNumber is the default callee for triggered calls.
	UserNumber string

	// Environment is reported by /debug. Secret values must already be
	// masked.
	Environment map[string]string

	// ShutdownTimeout bounds graceful shutdown (default: 5s)
	ShutdownTimeout time.Duration
}

// WellnessServer serves the HTTP endpoints.
type WellnessServer struct {
	config Config
	orch   *call.Orchestrator
	dialer telephony.Dialer
	hub    *EventHub

	router     chi.Router
	httpServer *http.Server
}

// New creates the server. dialer may be nil when telephony is not
// configured; the trigger endpoints then answer 503. hub may be nil to
// disable the event feed.
func New(config Config, orch *call.Orchestrator, dialer telephony.Dialer, hub *EventHub) *WellnessServer {
	if config.Addr == "" {
		config.Addr = ":3000"
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	s := &WellnessServer{
		config: config,
		orch:   orch,
		dialer: dialer,
		hub:    hub,
	}
	s.router = s.routes()
	return s
}

func (s *WellnessServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// Alerts and outbound calls
	r.Post("/start-therapeutic-call", s.handleStartTherapeuticCall)
	r.Get("/test-vital-alert", s.handleTestVitalAlert)
	r.Get("/trigger-call", s.handleTriggerCall)
	r.Post("/trigger-therapeutic-call", s.handleTriggerTherapeuticCall)

	// Twilio webhooks
	r.Post("/voice", s.handleVoice)
	r.Post("/process-speech", s.handleProcessSpeech)
	r.Post("/voice-timeout", s.handleVoiceTimeout)

	// Status
	r.Get("/health", s.handleHealth)
	r.Get("/debug", s.handleDebug)
	if s.hub != nil {
		r.Get("/events", s.hub.ServeHTTP)
	}

	return r
}

// Handler returns the root HTTP handler.
func (s *WellnessServer) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *WellnessServer) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.config.Addr).Str("publicURL", s.config.PublicURL).Msg("Server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the event feed.
func (s *WellnessServer) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping server...")

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
