package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Playback sinks understood by the service.
const (
	SinkSpeaker = "speaker" // host audio device via beep
	SinkTimer   = "timer"   // headless, completes after the narration's real-time length
)

// legacyAPIKeyVars are the credential names accepted by earlier deployments of the site.
var legacyAPIKeyVars = []string{"VITE_GEMINI_API_KEY", "VITEGEMINIAPIKEY", "API_KEY"}

// Config holds all configuration for the meditation guide service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:""` // Comma separated; empty allows same-origin and non-browser clients

	// Gemini configuration. The key is optional: without it script and speech
	// generation degrade to their placeholder responses.
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiBaseURL   string `envconfig:"GEMINI_BASE_URL" default:""`
	GeminiTextModel string `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-3-flash-preview"`
	GeminiTTSModel  string `envconfig:"GEMINI_TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`
	GeminiVoice     string `envconfig:"GEMINI_VOICE" default:"Kore"`

	// Generation configuration
	ScriptTemperature float32 `envconfig:"SCRIPT_TEMPERATURE" default:"0.7"`
	RequestTimeout    int     `envconfig:"REQUEST_TIMEOUT" default:"60"`     // seconds
	SpeechMaxChars    int     `envconfig:"SPEECH_MAX_CHARS" default:"1200"` // upper bound of text sent for synthesis
	AutoNarrate       bool    `envconfig:"AUTO_NARRATE" default:"true"`     // continue into speech once the script arrives

	// Audio output
	PlaybackSink string `envconfig:"PLAYBACK_SINK" default:"speaker"`

	// Breathing tool
	BreathingPhaseSeconds int `envconfig:"BREATHING_PHASE_SECONDS" default:"4"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = lookupLegacyAPIKey()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.PlaybackSink {
	case SinkSpeaker, SinkTimer:
	default:
		return fmt.Errorf("PLAYBACK_SINK must be %q or %q, got %q", SinkSpeaker, SinkTimer, c.PlaybackSink)
	}
	if c.SpeechMaxChars <= 0 {
		return fmt.Errorf("SPEECH_MAX_CHARS must be positive")
	}
	if c.BreathingPhaseSeconds <= 0 {
		return fmt.Errorf("BREATHING_PHASE_SECONDS must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// HasAPIKey reports whether a Gemini credential is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// Origins returns the parsed ALLOWED_ORIGINS list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func lookupLegacyAPIKey() string {
	for _, name := range legacyAPIKeyVars {
		if v := strings.TrimSpace(GetEnv(name, "")); v != "" {
			return v
		}
	}
	return ""
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
