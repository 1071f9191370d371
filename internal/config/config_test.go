package config

import (
	"os"
	"testing"
)

func clearKeyEnv() {
	os.Unsetenv("GEMINI_API_KEY")
	for _, name := range legacyAPIKeyVars {
		os.Unsetenv(name)
	}
}

func TestLoad(t *testing.T) {
	clearKeyEnv()
	os.Setenv("GEMINI_API_KEY", "test-gemini-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.GeminiAPIKey != "test-gemini-key" {
		t.Errorf("Expected GeminiAPIKey 'test-gemini-key', got '%s'", cfg.GeminiAPIKey)
	}
	if !cfg.HasAPIKey() {
		t.Error("Expected HasAPIKey to be true")
	}
}

func TestLoad_MissingKeyIsNotFatal(t *testing.T) {
	clearKeyEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected missing key to degrade, got error: %v", err)
	}
	if cfg.HasAPIKey() {
		t.Error("Expected HasAPIKey to be false")
	}
}

func TestLoad_LegacyKeyNames(t *testing.T) {
	for _, name := range legacyAPIKeyVars {
		t.Run(name, func(t *testing.T) {
			clearKeyEnv()
			os.Setenv(name, "legacy-key")
			defer os.Unsetenv(name)

			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() failed: %v", err)
			}
			if cfg.GeminiAPIKey != "legacy-key" {
				t.Errorf("Expected key from %s, got '%s'", name, cfg.GeminiAPIKey)
			}
		})
	}
}

func TestLoad_PrimaryKeyWins(t *testing.T) {
	clearKeyEnv()
	os.Setenv("GEMINI_API_KEY", "primary")
	os.Setenv("API_KEY", "fallback")
	defer clearKeyEnv()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.GeminiAPIKey != "primary" {
		t.Errorf("Expected 'primary', got '%s'", cfg.GeminiAPIKey)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeyEnv()
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.GeminiTextModel != "gemini-3-flash-preview" {
		t.Errorf("Expected default GeminiTextModel, got '%s'", cfg.GeminiTextModel)
	}
	if cfg.GeminiVoice != "Kore" {
		t.Errorf("Expected default GeminiVoice 'Kore', got '%s'", cfg.GeminiVoice)
	}
	if cfg.ScriptTemperature != 0.7 {
		t.Errorf("Expected default ScriptTemperature 0.7, got %f", cfg.ScriptTemperature)
	}
	if cfg.SpeechMaxChars != 1200 {
		t.Errorf("Expected default SpeechMaxChars 1200, got %d", cfg.SpeechMaxChars)
	}
	if cfg.PlaybackSink != SinkSpeaker {
		t.Errorf("Expected default PlaybackSink 'speaker', got '%s'", cfg.PlaybackSink)
	}
	if cfg.BreathingPhaseSeconds != 4 {
		t.Errorf("Expected default BreathingPhaseSeconds 4, got %d", cfg.BreathingPhaseSeconds)
	}
	if !cfg.AutoNarrate {
		t.Error("Expected default AutoNarrate true")
	}
	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}

func TestLoad_InvalidSink(t *testing.T) {
	clearKeyEnv()
	os.Setenv("PLAYBACK_SINK", "cassette")
	defer os.Unsetenv("PLAYBACK_SINK")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unknown PLAYBACK_SINK")
	}
}

func TestValidate(t *testing.T) {
	base := Config{PlaybackSink: SinkTimer, SpeechMaxChars: 100, BreathingPhaseSeconds: 4, RequestTimeout: 10}
	if err := base.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	bad := base
	bad.SpeechMaxChars = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero SpeechMaxChars")
	}

	bad = base
	bad.BreathingPhaseSeconds = -1
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for negative BreathingPhaseSeconds")
	}
}

func TestOrigins(t *testing.T) {
	cfg := Config{AllowedOrigins: " https://a.example ,, https://b.example"}
	got := cfg.Origins()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("Unexpected origins: %v", got)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
