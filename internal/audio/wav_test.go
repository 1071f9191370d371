package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	buf, err := DecodePCM16(pcmBytes(1, 2, 3))
	if err != nil {
		t.Fatalf("DecodePCM16 failed: %v", err)
	}
	wav, err := EncodeWAV(buf)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(wav) != 44+6 {
		t.Fatalf("Expected 50 bytes, got %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("Unexpected WAV header: %q", wav[:44])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != 6 {
		t.Errorf("Expected data size 6, got %d", size)
	}
	if string(wav[44:]) != string(pcmBytes(1, 2, 3)) {
		t.Errorf("Unexpected PCM payload %v", wav[44:])
	}
}
