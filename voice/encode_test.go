package voice

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestEncodeWAV(t *testing.T) {
	tests := []struct {
		name       string
		samples    []float32
		sampleRate int
		wantPCM    []int16
	}{
		{"empty", nil, 16000, nil},
		{"clamped", []float32{0, 1, -1, 2, -2}, 16000, []int16{0, 32767, -32767, 32767, -32767}},
		{"half scale", []float32{0.5, -0.5}, 48000, []int16{16383, -16383}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeWAV(tt.samples, tt.sampleRate)
			if err != nil {
				t.Fatalf("EncodeWAV: %v", err)
			}
			if len(data) != 44+2*len(tt.samples) {
				t.Fatalf("len = %d, want %d", len(data), 44+2*len(tt.samples))
			}
			if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
				t.Fatalf("bad RIFF header: %q", data[:12])
			}
			if got := binary.LittleEndian.Uint32(data[24:28]); got != uint32(tt.sampleRate) {
				t.Errorf("sample rate = %d, want %d", got, tt.sampleRate)
			}
			if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(2*len(tt.samples)) {
				t.Errorf("data size = %d, want %d", got, 2*len(tt.samples))
			}
			for i, want := range tt.wantPCM {
				got := int16(binary.LittleEndian.Uint16(data[44+2*i:]))
				if got != want {
					t.Errorf("sample %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestEncodeWAV_InvalidRate(t *testing.T) {
	if _, err := EncodeWAV([]float32{0}, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		name     string
		wantMIME string
		wantErr  bool
	}{
		{"", "audio/wav", false},
		{"wav", "audio/wav", false},
		{"OPUS", "audio/ogg", false},
		{"mp3", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncoder(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && enc.MIMEType() != tt.wantMIME {
				t.Errorf("MIMEType() = %q, want %q", enc.MIMEType(), tt.wantMIME)
			}
		})
	}
}

func TestOpusEncoder_RejectsRate(t *testing.T) {
	if _, err := (OpusEncoder{}).Encode(makeSilence(441), 44100); err == nil {
		t.Fatal("expected error for 44.1 kHz")
	}
}

func TestOpusEncoder_OggContainer(t *testing.T) {
	data, err := (OpusEncoder{}).Encode(makeNoise(16000, 0.2, 11), 16000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("OggS")) {
		t.Fatalf("missing Ogg capture pattern: %q", data[:min(len(data), 8)])
	}
	if !bytes.Contains(data, []byte("OpusHead")) {
		t.Error("missing OpusHead header")
	}
}

func TestAudioBuffer(t *testing.T) {
	b := NewAudioBuffer(16000)
	b.Append(makeSilence(8000))
	b.Append(makeNoise(8000, 0.1, 5))

	if b.Len() != 16000 {
		t.Fatalf("Len() = %d, want 16000", b.Len())
	}
	if b.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", b.Duration())
	}

	out := b.Flush()
	if len(out) != 16000 {
		t.Errorf("len(Flush()) = %d, want 16000", len(out))
	}
	if b.Len() != 0 {
		t.Errorf("Len() after Flush = %d, want 0", b.Len())
	}
	if b.Flush() != nil {
		t.Error("second Flush should return nil")
	}
}
