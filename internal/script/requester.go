// Package script requests guided meditation scripts and daily tips from the
// text generation collaborator. It never fails outward: every degraded path
// yields a user-facing placeholder.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meditateology/guide/internal/gemini"
	"github.com/meditateology/guide/internal/resilience"
)

// Placeholder texts returned instead of a script.
const (
	MissingKeyText  = "OWNER NOTICE: The AI guide is currently offline. Please set GEMINI_API_KEY in the service environment and restart the service."
	InvalidKeyText  = "OWNER NOTICE: The API key provided is invalid. Please check your Google AI Studio account."
	UnavailableText = "The Zen Master is currently meditating deeply (connection error). Please try again in a moment."
	EmptyText       = "I'm sorry, I couldn't generate a script. Please try again."
)

// Tip texts used when no tip could be generated.
const (
	OfflineTip  = "Breathe in peace, breathe out stress."
	FallbackTip = "In the midst of movement and chaos, keep stillness inside of you."
)

const tipPrompt = "Give me one short, profound mindfulness tip for today. Just the tip."

// Duration is one of the fixed meditation lengths offered to the user.
type Duration string

const (
	ThreeMinutes Duration = "3 minute"
	FiveMinutes  Duration = "5 minute"
	TenMinutes   Duration = "10 minute"
)

// Durations lists the accepted durations in display order.
var Durations = []Duration{ThreeMinutes, FiveMinutes, TenMinutes}

// ErrInvalidDuration is returned by ParseDuration for labels outside Durations.
var ErrInvalidDuration = errors.New("invalid meditation duration")

// ParseDuration validates a duration label.
func ParseDuration(label string) (Duration, error) {
	label = strings.TrimSpace(label)
	for _, d := range Durations {
		if string(d) == label {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDuration, label)
}

// Status classifies how a request was answered.
type Status int

const (
	StatusOK Status = iota
	StatusMissingKey
	StatusInvalidKey
	StatusUnavailable
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissingKey:
		return "missing_key"
	case StatusInvalidKey:
		return "invalid_key"
	case StatusUnavailable:
		return "unavailable"
	case StatusEmpty:
		return "empty"
	}
	return "unknown"
}

// Result is the text shown to the user plus how it was obtained.
type Result struct {
	Text   string
	Status Status
}

// OK reports whether Text came from the collaborator.
func (r Result) OK() bool { return r.Status == StatusOK }

// TextGenerator produces text for a single prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Requester builds prompts and maps collaborator outcomes to display text.
type Requester struct {
	gen    TextGenerator
	logger zerolog.Logger
}

// NewRequester creates a requester. A nil generator means no credential is
// configured; every request then answers with the offline placeholder.
func NewRequester(gen TextGenerator, logger zerolog.Logger) *Requester {
	return &Requester{
		gen:    gen,
		logger: logger.With().Str("component", "script").Logger(),
	}
}

// Prompt returns the instruction sent for a script.
func Prompt(mood string, d Duration) string {
	return fmt.Sprintf("You are the Meditateology AI. Create a professional, calming %s meditation script for someone feeling %s. "+
		"Include clear breathing instructions and a peaceful visualization. "+
		"Format with a clear title and section headers.", d, mood)
}

// Generate returns a meditation script or a placeholder. It makes at most one request.
func (r *Requester) Generate(ctx context.Context, mood string, d Duration) string {
	return r.Request(ctx, mood, d).Text
}

// Request is Generate with the outcome classified.
func (r *Requester) Request(ctx context.Context, mood string, d Duration) Result {
	if r.gen == nil {
		r.logger.Error().Msg("Gemini API key is missing; serving offline notice")
		return Result{Text: MissingKeyText, Status: StatusMissingKey}
	}

	start := time.Now()
	text, err := r.gen.GenerateText(ctx, Prompt(mood, d))
	if err != nil {
		if gemini.IsInvalidKey(err) {
			r.logger.Error().Err(err).Msg("Gemini rejected the API key")
			return Result{Text: InvalidKeyText, Status: StatusInvalidKey}
		}
		event := r.logger.Error()
		if errors.Is(err, resilience.ErrCircuitOpen) {
			event = r.logger.Warn()
		}
		event.Err(err).Dur("elapsed", time.Since(start)).Msg("Script generation failed")
		return Result{Text: UnavailableText, Status: StatusUnavailable}
	}

	if strings.TrimSpace(text) == "" {
		r.logger.Warn().Msg("Script generation returned no text")
		return Result{Text: EmptyText, Status: StatusEmpty}
	}

	r.logger.Debug().
		Str("mood", mood).
		Str("duration", string(d)).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Script generated")
	return Result{Text: text, Status: StatusOK}
}

// Tip returns one short mindfulness tip, or a fixed fallback.
func (r *Requester) Tip(ctx context.Context) string {
	if r.gen == nil {
		return OfflineTip
	}
	text, err := r.gen.GenerateText(ctx, tipPrompt)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Tip generation failed")
		return FallbackTip
	}
	if text = strings.TrimSpace(text); text == "" {
		return FallbackTip
	}
	return text
}
