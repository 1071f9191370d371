package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// SampleRate is the rate of every narration payload; source and output
	// rates match, so decoded buffers are never resampled.
	SampleRate = 24000
	// Channels is the channel count of narration payloads.
	Channels = 1

	pcm16Scale = 32768.0
)

// ErrDecode marks a payload that cannot be turned into samples.
var ErrDecode = errors.New("audio decode failed")

// Buffer is a decoded mono float sample buffer.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Len returns the number of frames in the buffer.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Duration returns the real-time length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// DecodeBase64PCM16 decodes a base64 payload of signed 16-bit little-endian
// mono samples at SampleRate.
func DecodeBase64PCM16(payload string) (*Buffer, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}
	return DecodePCM16(raw)
}

// DecodePCM16 maps every little-endian int16 sample s to s/32768.
// No dithering or resampling is applied.
func DecodePCM16(pcmData []byte) (*Buffer, error) {
	if len(pcmData) == 0 {
		return nil, fmt.Errorf("%w: empty PCM data", ErrDecode)
	}
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("%w: PCM data length must be even (16-bit samples), got %d bytes", ErrDecode, len(pcmData))
	}

	samples := make([]float32, len(pcmData)/2)
	for i := range samples {
		s := int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8
		samples[i] = float32(s) / pcm16Scale
	}

	return &Buffer{Samples: samples, SampleRate: SampleRate, Channels: Channels}, nil
}

// EncodePCM16 converts float samples back to 16-bit little-endian PCM,
// clamping anything outside [-1, 1).
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := math.Round(float64(f) * pcm16Scale)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		s := int16(v)
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// EncodeBase64PCM16 is the inverse of DecodeBase64PCM16.
func EncodeBase64PCM16(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16(samples))
}
