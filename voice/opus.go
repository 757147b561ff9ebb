package voice

import (
	"bytes"
	"fmt"
	"math/rand/v2"

	opuscodec "github.com/jj11hh/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	opusFrameDuration = 20         // ms
	opusGranuleRate   = 48000      // Ogg Opus granule positions always count 48 kHz
	opusMaxPacket     = 1275       // largest single Opus frame
	opusPayloadType   = 111        // dynamic payload type used for Opus
	opusGranuleStep   = 48000 / 50 // granules per 20 ms frame
)

// OpusEncoder writes Opus packets into an Ogg container. It is much smaller
// than WAV for the same utterance, at the cost of needing libopus.
type OpusEncoder struct{}

func (OpusEncoder) MIMEType() string { return "audio/ogg" }

// Encode encodes mono samples at one of the Opus rates (8, 12, 16, 24 or
// 48 kHz). The final partial frame is padded with silence.
func (OpusEncoder) Encode(samples []float32, sampleRate int) ([]byte, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("opus: unsupported sample rate %d", sampleRate)
	}

	enc, err := opuscodec.NewEncoder(sampleRate, 1, opuscodec.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	var out bytes.Buffer
	w, err := oggwriter.NewWith(&out, opusGranuleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("create ogg writer: %w", err)
	}

	frameSize := sampleRate * opusFrameDuration / 1000
	frame := make([]float32, frameSize)
	packet := make([]byte, opusMaxPacket)

	hdr := rtp.Header{
		Version:        2,
		PayloadType:    opusPayloadType,
		SequenceNumber: uint16(rand.Uint32()),
		SSRC:           rand.Uint32(),
	}

	for off := 0; off < len(samples); off += frameSize {
		n := copy(frame, samples[off:])
		clear(frame[n:])

		size, err := enc.EncodeFloat32(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}

		hdr.SequenceNumber++
		hdr.Timestamp += opusGranuleStep
		pkt := &rtp.Packet{Header: hdr, Payload: packet[:size]}
		if err := w.WriteRTP(pkt); err != nil {
			return nil, fmt.Errorf("write ogg page: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close ogg writer: %w", err)
	}
	return out.Bytes(), nil
}
