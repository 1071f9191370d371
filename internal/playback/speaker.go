package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/meditateology/guide/internal/audio"
)

// SpeakerSink plays buffers on the host audio device through beep.
// The device is opened lazily on first use at audio.SampleRate.
type SpeakerSink struct {
	latency  time.Duration
	initOnce sync.Once
	initErr  error
}

// NewSpeakerSink creates a speaker sink with the given output latency (buffer size).
func NewSpeakerSink(latency time.Duration) *SpeakerSink {
	if latency <= 0 {
		latency = 100 * time.Millisecond
	}
	return &SpeakerSink{latency: latency}
}

func (s *SpeakerSink) init() error {
	s.initOnce.Do(func() {
		sr := beep.SampleRate(audio.SampleRate)
		if err := speaker.Init(sr, sr.N(s.latency)); err != nil {
			s.initErr = fmt.Errorf("init speaker: %w", err)
		}
	})
	return s.initErr
}

// Check opens the device if needed and reports whether it is usable.
func (s *SpeakerSink) Check(context.Context) (bool, error) {
	if err := s.init(); err != nil {
		return false, err
	}
	return true, nil
}

// Play mixes the buffer into the speaker output.
func (s *SpeakerSink) Play(buf *audio.Buffer, onDone func()) (Handle, error) {
	if err := s.init(); err != nil {
		return nil, err
	}

	h := &speakerHandle{}
	// The callback runs on the speaker goroutine with the speaker lock held,
	// so completion is handed off to a fresh goroutine.
	h.ctrl = &beep.Ctrl{Streamer: beep.Seq(newSampleStreamer(buf), beep.Callback(func() {
		go onDone()
	}))}
	speaker.Play(h.ctrl)
	return h, nil
}

type speakerHandle struct {
	ctrl *beep.Ctrl
	once sync.Once
}

// Stop detaches the stream from the mixer; beep drops a Ctrl with a nil streamer.
func (h *speakerHandle) Stop() {
	h.once.Do(func() {
		speaker.Lock()
		h.ctrl.Streamer = nil
		speaker.Unlock()
	})
}
