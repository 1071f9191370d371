package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// EncodeWAV wraps a decoded buffer in a PCM16 WAV container.
func EncodeWAV(b *Buffer) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAV writes the buffer to out as a mono PCM16LE WAV stream.
func WriteWAV(out io.Writer, b *Buffer) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	sampleRate := SampleRate
	var pcm []byte
	if b != nil {
		if b.SampleRate > 0 {
			sampleRate = b.SampleRate
		}
		pcm = EncodePCM16(b.Samples)
	}

	dataSize := uint32(len(pcm))
	header := []any{
		[]byte("RIFF"),
		uint32(36) + dataSize,
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(16),
		uint16(audioFormat),
		uint16(numChannels),
		uint32(sampleRate),
		uint32(sampleRate * numChannels * bitsPerSample / 8),
		uint16(numChannels * bitsPerSample / 8),
		uint16(bitsPerSample),
		[]byte("data"),
		dataSize,
	}

	w := bufio.NewWriter(out)
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}
