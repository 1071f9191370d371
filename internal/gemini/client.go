// Package gemini adapts the Google generative AI API to the text and speech
// collaborators used by the script and speech requesters.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/meditateology/guide/internal/config"
	"github.com/meditateology/guide/internal/observability"
	"github.com/meditateology/guide/internal/resilience"
)

var (
	// ErrMissingAPIKey is returned by NewClient when no credential is configured.
	ErrMissingAPIKey = errors.New("gemini API key is not configured")
	// ErrNoAudio is returned when a speech response carries no inline audio.
	ErrNoAudio = errors.New("speech response contained no audio")
)

// Client calls the text and speech models through a shared circuit breaker.
type Client struct {
	genai       *genai.Client
	textModel   string
	ttsModel    string
	voice       string
	temperature float32
	timeout     time.Duration
	breaker     *resilience.CircuitBreaker
	logger      zerolog.Logger
}

// NewClient creates a client from configuration. It fails with ErrMissingAPIKey
// when no key is present so callers can degrade instead of dialing out.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.HasAPIKey() {
		return nil, ErrMissingAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiBaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.GeminiBaseURL}
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		genai:       gc,
		textModel:   cfg.GeminiTextModel,
		ttsModel:    cfg.GeminiTTSModel,
		voice:       cfg.GeminiVoice,
		temperature: cfg.ScriptTemperature,
		timeout:     time.Duration(cfg.RequestTimeout) * time.Second,
		breaker: resilience.NewCircuitBreaker(
			"gemini",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.WithComponent("gemini"),
	}, nil
}

// GenerateText sends a single prompt to the text model and returns the response text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	var text string
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.genai.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature: genai.Ptr(c.temperature),
		})
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Synthesize asks the speech model to read text with the configured voice and
// returns the audio as a base64 PCM16 payload.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	var data []byte
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.genai.Models.GenerateContent(ctx, c.ttsModel, genai.Text(text), &genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice},
				},
			},
		})
		if err != nil {
			return err
		}
		data = inlineAudio(resp)
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrNoAudio
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Check reports whether the breaker currently admits requests. While it is
// open the error carries the breaker's failure totals for the readiness report.
func (c *Client) Check(context.Context) (bool, error) {
	if !c.breaker.Allow() {
		_, requests, failures, rate := c.breaker.GetStats()
		return false, fmt.Errorf("%w: %d of %d requests failed (%.0f%%)", resilience.ErrCircuitOpen, failures, requests, rate)
	}
	return true, nil
}

func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// A rejected key is a configuration problem, not an outage: it must keep
	// reaching the caller instead of opening the circuit.
	var rejected error
	err := c.breaker.Call(func() error {
		err := fn(ctx)
		if IsInvalidKey(err) {
			rejected = err
			return nil
		}
		return err
	})
	if rejected != nil {
		c.logger.Warn().Err(rejected).Msg("Gemini request rejected: invalid API key")
		return rejected
	}
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn().Err(err).Msg("Gemini request failed")
	}
	return err
}

func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// IsInvalidKey reports whether err is the remote service rejecting the API key.
func IsInvalidKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "API_KEY_INVALID") || strings.Contains(msg, "API key not valid")
}
