// Package config loads the wellness-call service configuration from the
// environment.
//
// Values are read once at startup. cmd/main.go loads a .env file first, so
// every setting below can live there during local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Server
	Port      string
	PublicURL string // public base URL Twilio uses to reach the webhooks

	// Twilio
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioNumber     string // caller ID used when originating calls
	UserNumber       string // default callee for /trigger-call

	// LLM
	LLMProvider   string // "gemini" or "openai"
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Session store
	SessionStore    string // "memory" or "redis"
	RedisAddr       string
	RedisSessionTTL time.Duration

	// Conversation
	Voice                string
	VoiceLanguage        string
	MaxTranscriptEntries int
	SpeechTimeout        time.Duration
	RetryTimeout         time.Duration
	CrisisHotline        string

	// Observability
	LogLevel        string
	LogFormat       string
	Environment     string
	TraceExporter   string // "none", "stdout" or "otlp"; also selects the metric exporter
	OTLPEndpoint    string
	TraceSampleRate float64
	MetricInterval  time.Duration
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "3000"),
		PublicURL:        strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioNumber:     os.Getenv("TWILIO_NUMBER"),
		UserNumber:       os.Getenv("USER_NUMBER"),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		SessionStore: strings.ToLower(getEnv("SESSION_STORE", "memory")),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),

		Voice:         getEnv("VOICE", "Polly.Joanna"),
		VoiceLanguage: getEnv("VOICE_LANGUAGE", "en-US"),
		CrisisHotline: getEnv("CRISIS_HOTLINE", "988"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		TraceExporter: strings.ToLower(getEnv("TRACE_EXPORTER", "none")),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.MaxTranscriptEntries, err = getEnvInt("MAX_TRANSCRIPT_ENTRIES", 12); err != nil {
		return nil, err
	}
	if cfg.SpeechTimeout, err = getEnvDuration("SPEECH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryTimeout, err = getEnvDuration("RETRY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RedisSessionTTL, err = getEnvDuration("REDIS_SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.TraceSampleRate, err = getEnvFloat("TRACE_SAMPLE_RATE", 1.0); err != nil {
		return nil, err
	}
	if cfg.MetricInterval, err = getEnvDuration("METRIC_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider)
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_STORE: %s", c.SessionStore)
	}
	if c.MaxTranscriptEntries < 2 {
		return fmt.Errorf("MAX_TRANSCRIPT_ENTRIES must be at least 2, got %d", c.MaxTranscriptEntries)
	}
	if c.SpeechTimeout < time.Second || c.RetryTimeout < time.Second {
		return fmt.Errorf("speech and retry timeouts must be at least one second")
	}
	switch c.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unsupported TRACE_EXPORTER: %s", c.TraceExporter)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1, got %g", c.TraceSampleRate)
	}
	if c.MetricInterval <= 0 {
		return fmt.Errorf("METRIC_INTERVAL must be positive")
	}
	return nil
}

// Missing lists the settings required for placing calls and talking to the
// configured LLM that are not set. The service still starts without them.
func (c *Config) Missing() []string {
	var missing []string
	if c.PublicURL == "" {
		missing = append(missing, "PUBLIC_URL")
	}
	if c.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if c.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.TwilioNumber == "" {
		missing = append(missing, "TWILIO_NUMBER")
	}
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	}
	return missing
}

// EnvironmentReport describes which settings are present without exposing
// secret values.
func (c *Config) EnvironmentReport() map[string]string {
	return map[string]string{
		"PUBLIC_URL":         c.PublicURL,
		"TWILIO_NUMBER":      c.TwilioNumber,
		"USER_NUMBER":        c.UserNumber,
		"LLM_PROVIDER":       c.LLMProvider,
		"SESSION_STORE":      c.SessionStore,
		"TRACE_EXPORTER":     c.TraceExporter,
		"GEMINI_API_KEY":     setOrNot(c.GeminiAPIKey),
		"OPENAI_API_KEY":     setOrNot(c.OpenAIAPIKey),
		"TWILIO_ACCOUNT_SID": setOrNot(c.TwilioAccountSID),
		"TWILIO_AUTH_TOKEN":  setOrNot(c.TwilioAuthToken),
	}
}

func setOrNot(v string) string {
	if v == "" {
		return "Not Set"
	}
	return "Set"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// getEnvDuration accepts Go durations ("15s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
