package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Encoder turns a finished recording into a container the backend accepts.
type Encoder interface {
	MIMEType() string
	Encode(samples []float32, sampleRate int) ([]byte, error)
}

// NewEncoder returns the encoder registered under name ("wav" or "opus").
// An empty name selects WAV.
func NewEncoder(name string) (Encoder, error) {
	switch strings.ToLower(name) {
	case "", "wav":
		return WAVEncoder{}, nil
	case "opus", "ogg":
		return OpusEncoder{}, nil
	}
	return nil, fmt.Errorf("unknown audio encoding %q", name)
}

// WAVEncoder writes 16-bit mono PCM in a RIFF/WAVE container.
type WAVEncoder struct{}

func (WAVEncoder) MIMEType() string { return "audio/wav" }

func (WAVEncoder) Encode(samples []float32, sampleRate int) ([]byte, error) {
	return EncodeWAV(samples, sampleRate)
}

// EncodeWAV converts float32 PCM samples to WAV format.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	dataSize := len(samples) * 2 // 16-bit = 2 bytes per sample

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	// RIFF header
	buf.WriteString("RIFF")
	writeLE(buf, uint32(36+dataSize)) // File size - 8
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	writeLE(buf, uint32(16))           // Chunk size
	writeLE(buf, uint16(1))            // Audio format (PCM)
	writeLE(buf, uint16(1))            // Num channels (mono)
	writeLE(buf, uint32(sampleRate))   // Sample rate
	writeLE(buf, uint32(sampleRate*2)) // Byte rate
	writeLE(buf, uint16(2))            // Block align
	writeLE(buf, uint16(16))           // Bits per sample

	// data chunk
	buf.WriteString("data")
	writeLE(buf, uint32(dataSize))

	for _, s := range samples {
		writeLE(buf, floatToPCM16(s))
	}

	return buf.Bytes(), nil
}

// floatToPCM16 clamps s to [-1, 1] and scales it to int16.
func floatToPCM16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767)
}

func writeLE(buf *bytes.Buffer, v any) {
	// bytes.Buffer writes never fail.
	_ = binary.Write(buf, binary.LittleEndian, v)
}
