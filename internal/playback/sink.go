package playback

import (
	"context"
	"time"

	"github.com/meditateology/guide/internal/audio"
)

// Handle is one live output stream. Stop must be safe to call more than once.
type Handle interface {
	Stop()
}

// Sink acquires the shared audio output for a decoded buffer.
//
// onDone is invoked at most once, when the buffer has been played to the end.
// It must never be invoked from inside Play itself. A completion racing with
// Stop may still arrive; the controller discards it.
type Sink interface {
	Play(buf *audio.Buffer, onDone func()) (Handle, error)
}

// Checker is implemented by sinks that can report whether the output device is usable.
type Checker interface {
	Check(ctx context.Context) (bool, error)
}

// TimerSink emulates an output device: it plays nothing and reports completion
// after the buffer's real-time duration. Used for headless deployments.
type TimerSink struct{}

// Play schedules completion after buf.Duration().
func (TimerSink) Play(buf *audio.Buffer, onDone func()) (Handle, error) {
	h := &timerHandle{}
	h.timer = time.AfterFunc(buf.Duration(), onDone)
	return h, nil
}

// Check always succeeds.
func (TimerSink) Check(context.Context) (bool, error) { return true, nil }

type timerHandle struct {
	timer *time.Timer
}

func (h *timerHandle) Stop() {
	h.timer.Stop()
}
