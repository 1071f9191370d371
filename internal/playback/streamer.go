package playback

import (
	"fmt"

	"github.com/meditateology/guide/internal/audio"
)

// sampleStreamer feeds a mono float buffer to beep as identical left/right frames.
// It implements beep.StreamSeeker.
type sampleStreamer struct {
	samples []float32
	pos     int
}

func newSampleStreamer(buf *audio.Buffer) *sampleStreamer {
	var samples []float32
	if buf != nil {
		samples = buf.Samples
	}
	return &sampleStreamer{samples: samples}
}

func (s *sampleStreamer) Stream(out [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := copyFrames(out, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *sampleStreamer) Err() error { return nil }

func (s *sampleStreamer) Len() int { return len(s.samples) }

func (s *sampleStreamer) Position() int { return s.pos }

func (s *sampleStreamer) Seek(p int) error {
	if p < 0 || p > len(s.samples) {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, len(s.samples))
	}
	s.pos = p
	return nil
}

func copyFrames(out [][2]float64, samples []float32) int {
	n := len(out)
	if len(samples) < n {
		n = len(samples)
	}
	for i := 0; i < n; i++ {
		v := float64(samples[i])
		out[i][0], out[i][1] = v, v
	}
	return n
}
