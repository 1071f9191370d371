package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/meditateology/guide/internal/audio"
	"github.com/meditateology/guide/internal/observability"
	"github.com/meditateology/guide/internal/playback"
	"github.com/meditateology/guide/internal/script"
)

// ScriptState tracks the script of a session.
type ScriptState int

const (
	ScriptPending ScriptState = iota
	ScriptLoading
	ScriptReady
)

func (s ScriptState) String() string {
	switch s {
	case ScriptPending:
		return "pending"
	case ScriptLoading:
		return "loading"
	case ScriptReady:
		return "ready"
	}
	return "unknown"
}

// Stage is the single user-visible state of a session; the loading and
// playing flags of a Snapshot are derived from it and never overlap.
type Stage string

const (
	StagePending       Stage = "pending"
	StageScriptLoading Stage = "script_loading"
	StageReady         Stage = "ready"
	StageAudioLoading  Stage = "audio_loading"
	StagePlaying       Stage = "playing"
)

// Session is one mood/duration request and its narration.
type Session struct {
	id        string
	mood      string
	duration  script.Duration
	createdAt time.Time

	scriptState ScriptState
	script      string
	scriptOK    bool

	audioLoading bool
	ticket       playback.Ticket
	narration    *audio.Buffer

	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Snapshot is a copy of session state safe to hand to callers.
type Snapshot struct {
	ID              string    `json:"id"`
	Mood            string    `json:"mood"`
	Duration        string    `json:"duration"`
	Script          string    `json:"script,omitempty"`
	Stage           Stage     `json:"state"`
	IsScriptLoading bool      `json:"isScriptLoading"`
	IsAudioLoading  bool      `json:"isAudioLoading"`
	IsPlaying       bool      `json:"isPlaying"`
	HasAudio        bool      `json:"hasAudio"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (s *Session) stage(player playback.State) Stage {
	switch {
	case s.scriptState == ScriptLoading:
		return StageScriptLoading
	case s.audioLoading:
		return StageAudioLoading
	case s.ticket != 0 && player == playback.Playing:
		return StagePlaying
	case s.scriptState == ScriptReady:
		return StageReady
	}
	return StagePending
}

func (s *Session) snapshot(player playback.State) Snapshot {
	stage := s.stage(player)
	return Snapshot{
		ID:              s.id,
		Mood:            s.mood,
		Duration:        string(s.duration),
		Script:          s.script,
		Stage:           stage,
		IsScriptLoading: stage == StageScriptLoading,
		IsAudioLoading:  stage == StageAudioLoading,
		IsPlaying:       stage == StagePlaying,
		HasAudio:        s.narration != nil,
		CreatedAt:       s.createdAt,
	}
}
