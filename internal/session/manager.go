// Package session runs the meditation pipeline: script, then speech, then
// playback, for the one active session of the guide.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meditateology/guide/internal/audio"
	"github.com/meditateology/guide/internal/observability"
	"github.com/meditateology/guide/internal/playback"
	"github.com/meditateology/guide/internal/script"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidInput = errors.New("invalid session input")
	ErrBusy         = errors.New("script request already in flight")
	ErrNoScript     = errors.New("session has no script yet")
	ErrNoAudio      = errors.New("session has no narration audio")
	// ErrStale marks a completion that arrived after its session was replaced,
	// closed or stopped. The result was discarded.
	ErrStale = errors.New("stale result discarded")
)

// ScriptSource produces the meditation script.
type ScriptSource interface {
	Request(ctx context.Context, mood string, d script.Duration) script.Result
}

// SpeechSource produces the narration payload for a script.
type SpeechSource interface {
	Synthesize(ctx context.Context, text string) (string, bool)
}

// Player is the playback controller as seen by the session pipeline.
type Player interface {
	Load() playback.Ticket
	Play(ticket playback.Ticket, payload string) error
	Abort(ticket playback.Ticket)
	Stop()
	Interrupt() bool
	Close()
	State() playback.State
	Buffer() *audio.Buffer
}

// Options tune the pipeline.
type Options struct {
	// AutoNarrate continues into speech as soon as the script arrives.
	AutoNarrate bool
}

// Manager owns the active session. Opening a session replaces the previous
// one; completions belonging to a replaced session are dropped.
type Manager struct {
	scripts ScriptSource
	speech  SpeechSource
	player  Player
	opts    Options
	logger  zerolog.Logger

	mu      sync.Mutex
	current *Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager.
func NewManager(scripts ScriptSource, speech SpeechSource, player Player, opts Options, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		scripts: scripts,
		speech:  speech,
		player:  player,
		opts:    opts,
		logger:  logger.With().Str("component", "session").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Open validates input, stops any audio and makes a new session current.
func (m *Manager) Open(mood, duration string) (Snapshot, error) {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return Snapshot{}, fmt.Errorf("%w: mood is required", ErrInvalidInput)
	}
	d, err := script.ParseDuration(duration)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	id := uuid.New().String()
	s := &Session{
		id:        id,
		mood:      mood,
		duration:  d,
		createdAt: time.Now(),
		logger: observability.WithCorrelationID(m.logger, "").With().
			Str("session_id", id).
			Logger(),
		metrics: observability.NewSessionMetrics(id),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Audio stops before the new session can start anything.
	interrupted := m.player.Interrupt()
	if prev := m.current; prev != nil {
		prev.metrics.RecordSessionEnd()
		prev.logger.Info().Bool("narration_interrupted", interrupted).Msg("Session replaced")
	}
	m.current = s
	s.metrics.RecordSessionStart()
	s.logger.Info().Str("mood", mood).Str("duration", string(d)).Msg("Session opened")

	return s.snapshot(m.player.State()), nil
}

// Current returns the active session.
func (m *Manager) Current() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Snapshot{}, ErrNotFound
	}
	return m.current.snapshot(m.player.State()), nil
}

// Get returns the session with id if it is still active.
func (m *Manager) Get(id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookupLocked(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(m.player.State()), nil
}

// Run requests the script and, with AutoNarrate, the narration. Degraded
// collaborator outcomes are not errors; ErrStale reports a dropped result.
func (m *Manager) Run(ctx context.Context, id string) error {
	m.mu.Lock()
	s, err := m.lookupLocked(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if s.scriptState == ScriptLoading {
		m.mu.Unlock()
		return ErrBusy
	}
	m.resetAudioLocked(s)
	s.narration = nil
	s.scriptState = ScriptLoading
	mood, d := s.mood, s.duration
	m.mu.Unlock()

	s.metrics.RecordScriptStart()
	res := m.scripts.Request(ctx, mood, d)
	s.metrics.RecordScriptEnd(res.OK())

	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		s.logger.Info().Str("status", res.Status.String()).Msg("Discarding script for inactive session")
		return ErrStale
	}
	s.script = res.Text
	s.scriptOK = res.OK()
	s.scriptState = ScriptReady
	m.mu.Unlock()

	s.logger.Info().Str("status", res.Status.String()).Msg("Script ready")
	if !m.opts.AutoNarrate {
		return nil
	}
	return m.narrate(ctx, s)
}

// Narrate requests speech for the current script and starts playback.
func (m *Manager) Narrate(ctx context.Context, id string) error {
	m.mu.Lock()
	s, err := m.lookupLocked(id)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.narrate(ctx, s)
}

func (m *Manager) narrate(ctx context.Context, s *Session) error {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return ErrStale
	}
	if s.scriptState != ScriptReady || s.script == "" {
		m.mu.Unlock()
		return ErrNoScript
	}
	text := s.script
	ticket := m.player.Load()
	s.ticket = ticket
	s.audioLoading = true
	m.mu.Unlock()

	s.metrics.RecordSpeechStart()
	payload, ok := m.speech.Synthesize(ctx, text)
	s.metrics.RecordSpeechEnd(ok)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != s || s.ticket != ticket {
		m.player.Abort(ticket)
		s.logger.Info().Msg("Discarding narration for superseded request")
		return ErrStale
	}
	s.audioLoading = false

	if !ok {
		m.player.Abort(ticket)
		s.ticket = 0
		s.logger.Warn().Msg("Narration unavailable; script stays readable")
		return nil
	}

	if err := m.player.Play(ticket, payload); err != nil {
		s.ticket = 0
		if errors.Is(err, playback.ErrStaleTicket) {
			return ErrStale
		}
		s.metrics.RecordError("playback_failed", "session")
		s.logger.Error().Err(err).Msg("Narration playback did not start")
		return nil
	}
	s.narration = m.player.Buffer()
	s.logger.Info().Dur("length", s.narration.Duration()).Msg("Narration playing")
	return nil
}

// StopAudio halts narration of the session. It is a no-op when nothing plays.
func (m *Manager) StopAudio(id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookupLocked(id)
	if err != nil {
		return Snapshot{}, err
	}
	if s.ticket != 0 || s.audioLoading {
		m.resetAudioLocked(s)
		s.logger.Info().Msg("Narration stopped")
	}
	return s.snapshot(m.player.State()), nil
}

// Narration returns the decoded narration of the session, retained after playback ends.
func (m *Manager) Narration(id string) (*audio.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if s.narration == nil {
		return nil, ErrNoAudio
	}
	return s.narration, nil
}

// Close ends the session and stops its audio ("start over").
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookupLocked(id)
	if err != nil {
		return err
	}
	m.closeLocked(s)
	return nil
}

// RunAsync runs the pipeline for id in the background.
func (m *Manager) RunAsync(id string) {
	m.goBackground(func(ctx context.Context) error { return m.Run(ctx, id) }, id, "run")
}

// NarrateAsync requests narration for id in the background.
func (m *Manager) NarrateAsync(id string) {
	m.goBackground(func(ctx context.Context) error { return m.Narrate(ctx, id) }, id, "narrate")
}

// Shutdown closes the active session, force-stops playback and waits for
// background work to return.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.current != nil {
		m.closeLocked(m.current)
	}
	m.player.Close()
	m.mu.Unlock()

	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) goBackground(fn func(ctx context.Context) error, id, op string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := fn(m.ctx); err != nil && !errors.Is(err, ErrStale) {
			m.logger.Warn().Err(err).Str("session_id", id).Str("op", op).Msg("Background session work failed")
		}
	}()
}

func (m *Manager) lookupLocked(id string) (*Session, error) {
	if m.current == nil || m.current.id != id {
		return nil, ErrNotFound
	}
	return m.current, nil
}

func (m *Manager) resetAudioLocked(s *Session) {
	m.player.Stop()
	s.ticket = 0
	s.audioLoading = false
}

func (m *Manager) closeLocked(s *Session) {
	if m.player.Interrupt() {
		s.logger.Info().Msg("Narration interrupted")
	}
	s.ticket = 0
	s.audioLoading = false
	m.current = nil
	s.metrics.RecordSessionEnd()
	s.logger.Info().Msg("Session closed")
}
