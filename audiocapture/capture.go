// Package audiocapture provides microphone capture.
package audiocapture

import (
	"errors"
	"fmt"

	"go.aimuz.me/prakriti/internal/types"
)

var (
	// ErrRunning is returned by Start while a capture is already active.
	ErrRunning = errors.New("audiocapture: already running")

	// ErrDeviceUnavailable is returned when the input device cannot be
	// opened, e.g. because it is missing or permission was denied.
	ErrDeviceUnavailable = types.ErrDeviceUnavailable
)

// DefaultSampleRate is used when New is given a non-positive rate.
const DefaultSampleRate = 16000

// AudioHandler receives mono float32 samples in [-1, 1].
// The slice is only valid for the duration of the call.
type AudioHandler func(samples []float32)

// Capturer captures audio from the default input device.
// Only one capture runs at a time per Capturer.
type Capturer interface {
	Start(handler AudioHandler) error
	Stop() error
	SampleRate() int
}

func deviceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, op, err)
}

// pcm16ToFloat32 converts little-endian signed 16-bit samples to float32.
// A trailing odd byte is ignored. dst is reused when large enough.
func pcm16ToFloat32(dst []float32, src []byte) []float32 {
	n := len(src) / 2
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		v := int16(uint16(src[2*i]) | uint16(src[2*i+1])<<8)
		dst[i] = float32(v) / 32768
	}
	return dst
}
