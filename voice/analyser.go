package voice

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the analysis window length in samples.
	FFTSize = 256
	// BinCount is the number of frequency bins produced per snapshot.
	BinCount = FFTSize / 2

	defaultSmoothing   = 0.8
	defaultMinDecibels = -100.0
	defaultMaxDecibels = -30.0
)

// Analyser produces byte-scaled frequency snapshots of the most recent
// FFTSize samples, the way a browser AnalyserNode does: Blackman window,
// magnitude smoothed over time, decibels mapped linearly onto 0..255.
//
// An Analyser is not safe for concurrent use.
type Analyser struct {
	fft      *fourier.FFT
	window   []float64
	ring     []float64 // last FFTSize samples, oldest first once full
	pos      int
	filled   bool
	frame    []float64
	coeffs   []complex128
	smoothed []float64

	smoothing float64
	minDB     float64
	maxDB     float64
}

// NewAnalyser returns an Analyser with smoothing 0.8 and a [-100, -30] dB
// range.
func NewAnalyser() *Analyser {
	return &Analyser{
		fft:       fourier.NewFFT(FFTSize),
		window:    blackman(FFTSize),
		ring:      make([]float64, FFTSize),
		frame:     make([]float64, FFTSize),
		smoothed:  make([]float64, BinCount),
		smoothing: defaultSmoothing,
		minDB:     defaultMinDecibels,
		maxDB:     defaultMaxDecibels,
	}
}

// Write feeds samples into the analysis window.
func (a *Analyser) Write(samples []float32) {
	if len(samples) >= FFTSize {
		samples = samples[len(samples)-FFTSize:]
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos++
		if a.pos == FFTSize {
			a.pos = 0
			a.filled = true
		}
	}
}

// ByteFrequencyData computes a snapshot into dst, which is grown to
// BinCount if needed, and returns it. Each call advances the smoothing.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	if cap(dst) < BinCount {
		dst = make([]byte, BinCount)
	}
	dst = dst[:BinCount]

	// Unroll the ring so the oldest sample comes first.
	start := 0
	if a.filled {
		start = a.pos
	}
	for i := range a.frame {
		a.frame[i] = a.ring[(start+i)%FFTSize] * a.window[i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	scale := 255 / (a.maxDB - a.minDB)
	for k := 0; k < BinCount; k++ {
		mag := cmplx.Abs(a.coeffs[k]) / FFTSize
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		v := a.smoothed[k]
		if v <= 0 {
			dst[k] = 0
			continue
		}
		b := math.Floor(scale * (20*math.Log10(v) - a.minDB))
		switch {
		case b < 0:
			dst[k] = 0
		case b > 255:
			dst[k] = 255
		default:
			dst[k] = byte(b)
		}
	}
	return dst
}

// Reset clears the window and the smoothing history.
func (a *Analyser) Reset() {
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
	a.filled = false
}

// MeanLevel returns the average of a byte snapshot, 0..255.
func MeanLevel(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0 := 0.5 * (1 - alpha)
	a1 := 0.5
	a2 := 0.5 * alpha

	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}
