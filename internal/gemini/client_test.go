package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/meditateology/guide/internal/config"
	"github.com/meditateology/guide/internal/resilience"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		GeminiAPIKey:               "test-key",
		GeminiBaseURL:              baseURL,
		GeminiTextModel:            "text-model",
		GeminiTTSModel:             "tts-model",
		GeminiVoice:                "Kore",
		ScriptTemperature:          0.7,
		RequestTimeout:             5,
		CircuitBreakerMaxFailures:  1,
		CircuitBreakerResetTimeout: 60,
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	cfg := testConfig("")
	cfg.GeminiAPIKey = ""

	_, err := NewClient(context.Background(), cfg)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestClient_GenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "text-model:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Peaceful Morning"}]}}]}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), testConfig(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	text, err := c.GenerateText(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "Peaceful Morning" {
		t.Errorf("Expected 'Peaceful Morning', got %q", text)
	}
}

func TestClient_Synthesize(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xC0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":%q}}]}}]}`,
			base64.StdEncoding.EncodeToString(pcm))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), testConfig(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	payload, err := c.Synthesize(context.Background(), "Breathe in.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if payload != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("Unexpected payload %q", payload)
	}
}

func TestClient_InvalidKeyKeepsCircuitClosed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), testConfig(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err = c.GenerateText(context.Background(), "prompt")
		if !IsInvalidKey(err) {
			t.Fatalf("Call %d: expected invalid key error, got %v", i, err)
		}
	}
	if hits.Load() != 3 {
		t.Errorf("Expected every call to reach the server, got %d", hits.Load())
	}
	if ok, err := c.Check(context.Background()); !ok {
		t.Errorf("Expected Check to pass after key rejections, got %v", err)
	}
}

func TestClient_ServerErrorOpensCircuit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), testConfig(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.GenerateText(context.Background(), "prompt")
	if err == nil || errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Expected a server error, got %v", err)
	}

	before := hits.Load()
	_, err = c.GenerateText(context.Background(), "prompt")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if hits.Load() != before {
		t.Error("Expected no request while the circuit is open")
	}

	ok, err := c.Check(context.Background())
	if ok {
		t.Error("Expected Check to fail while the circuit is open")
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen from Check, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "1 of 1 requests failed") {
		t.Errorf("Expected failure totals in %q", err.Error())
	}
}

func TestIsInvalidKey(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("rpc error: API_KEY_INVALID"), true},
		{errors.New("API key not valid. Please pass a valid API key."), true},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := IsInvalidKey(tt.err); got != tt.want {
			t.Errorf("IsInvalidKey(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
