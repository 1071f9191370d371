// Package speech turns script text into a narration payload through the
// speech synthesis collaborator.
package speech

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/meditateology/guide/internal/resilience"
)

// Synthesizer reads text aloud and returns base64 PCM16 audio at 24000 Hz mono.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Requester prepares text and asks the synthesizer for audio. It never fails
// outward; an absent payload is reported as ok == false.
type Requester struct {
	synth    Synthesizer
	maxChars int
	logger   zerolog.Logger
}

// NewRequester creates a requester. A nil synthesizer means no credential is configured.
func NewRequester(synth Synthesizer, maxChars int, logger zerolog.Logger) *Requester {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Requester{
		synth:    synth,
		maxChars: maxChars,
		logger:   logger.With().Str("component", "speech").Logger(),
	}
}

// Synthesize returns the narration payload for text, or ("", false).
// It makes at most one request.
func (r *Requester) Synthesize(ctx context.Context, text string) (string, bool) {
	if r.synth == nil {
		r.logger.Error().Msg("Gemini API key is missing; narration unavailable")
		return "", false
	}

	prepared := PrepareText(text, r.maxChars)
	if prepared == "" {
		r.logger.Warn().Msg("Nothing to narrate after cleaning script text")
		return "", false
	}

	start := time.Now()
	payload, err := r.synth.Synthesize(ctx, prepared)
	if err != nil {
		event := r.logger.Error()
		if errors.Is(err, resilience.ErrCircuitOpen) {
			event = r.logger.Warn()
		}
		event.Err(err).Dur("elapsed", time.Since(start)).Msg("Speech synthesis failed")
		return "", false
	}
	if payload == "" {
		r.logger.Warn().Msg("Speech synthesis returned no audio")
		return "", false
	}

	r.logger.Debug().
		Int("chars", len(prepared)).
		Int("payload_len", len(payload)).
		Dur("elapsed", time.Since(start)).
		Msg("Narration synthesized")
	return payload, true
}
