// Package voice records spoken turns from the microphone and detects when
// the speaker has stopped talking.
package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"go.aimuz.me/prakriti/audiocapture"
	"go.aimuz.me/prakriti/internal/types"
)

var (
	// ErrBusy is returned by Start while a session is recording or finalizing.
	ErrBusy = errors.New("voice: recording in progress")

	// ErrDeviceUnavailable is returned by Start when the microphone cannot
	// be acquired.
	ErrDeviceUnavailable = types.ErrDeviceUnavailable
)

// DefaultFrameInterval approximates a display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Payload is one finished recording.
type Payload struct {
	Data       string // base64 of the encoded container
	MIMEType   string
	Duration   time.Duration
	Samples    []float32 // raw PCM, kept for local captioning
	SampleRate int
}

// Config holds recorder tuning. Zero values select the defaults.
type Config struct {
	Threshold     float64       // mean byte energy counted as speech
	QuietWindow   time.Duration // silence that ends an utterance
	FrameInterval time.Duration // analysis cadence
	Encoder       Encoder
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:     DefaultThreshold,
		QuietWindow:   DefaultQuietWindow,
		FrameInterval: DefaultFrameInterval,
		Encoder:       WAVEncoder{},
	}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces the wall clock driving the frame loop.
func WithClock(c clockwork.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithLevelHandler registers a callback that receives the mean spectral
// level (0..255) of every analysis frame.
func WithLevelHandler(fn func(level float64)) Option {
	return func(r *Recorder) { r.onLevel = fn }
}

// Recorder owns the microphone for the duration of one session at a time.
type Recorder struct {
	cfg     Config
	src     audiocapture.Capturer
	clock   clockwork.Clock
	onLevel func(float64)

	mu   sync.Mutex
	sess *session // recording or finalizing
}

// NewRecorder creates a Recorder reading from src.
func NewRecorder(cfg Config, src audiocapture.Capturer, opts ...Option) *Recorder {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = DefaultQuietWindow
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Encoder == nil {
		cfg.Encoder = WAVEncoder{}
	}

	r := &Recorder{
		cfg:   cfg,
		src:   src,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// session is the transient state of one capture gesture.
type session struct {
	onPayload func(Payload)
	started   time.Time

	done     chan struct{} // closed once the session starts stopping
	stopOnce sync.Once

	mu       sync.Mutex // guards buffer and analyser, fed from the audio thread
	buffer   *AudioBuffer
	analyser *Analyser
	bins     []byte

	vad *VAD // frame loop only
}

// stop marks the session as no longer live. It reports whether this call
// was the one that stopped it.
func (s *session) stop() bool {
	first := false
	s.stopOnce.Do(func() {
		close(s.done)
		first = true
	})
	return first
}

func (s *session) live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *session) write(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live() {
		return
	}
	s.buffer.Append(samples)
	s.analyser.Write(samples)
}

func (s *session) level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bins = s.analyser.ByteFrequencyData(s.bins)
	return MeanLevel(s.bins)
}

func (s *session) flush() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Flush()
}

// Start acquires the microphone and begins a session. onPayload is called
// exactly once when the session stops with audio, either on silence or on
// Stop. The session also ends when ctx is cancelled, without a payload.
func (r *Recorder) Start(ctx context.Context, onPayload func(Payload)) error {
	if onPayload == nil {
		return errors.New("voice: nil payload handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess != nil {
		return ErrBusy
	}

	s := &session{
		onPayload: onPayload,
		started:   r.clock.Now(),
		done:      make(chan struct{}),
		buffer:    NewAudioBuffer(r.src.SampleRate()),
		analyser:  NewAnalyser(),
		vad:       NewVAD(r.cfg.Threshold, r.cfg.QuietWindow),
	}
	s.vad.Reset(s.started)

	if err := r.src.Start(s.write); err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return err
	}

	r.sess = s
	ticker := r.clock.NewTicker(r.cfg.FrameInterval)
	go r.frameLoop(ctx, s, ticker)

	slog.Info("recording started", "sample_rate", r.src.SampleRate())
	return nil
}

// Stop ends the active session and delivers its payload. It is a no-op
// when nothing is recording.
func (r *Recorder) Stop() error {
	s := r.current()
	if s == nil {
		return nil
	}
	return r.finish(s, true)
}

// Cancel ends the active session, releasing the microphone and discarding
// the recorded audio.
func (r *Recorder) Cancel() error {
	s := r.current()
	if s == nil {
		return nil
	}
	return r.finish(s, false)
}

// Active reports whether a session is recording or finalizing.
func (r *Recorder) Active() bool {
	return r.current() != nil
}

func (r *Recorder) current() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess
}

func (r *Recorder) frameLoop(ctx context.Context, s *session, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			if err := r.finish(s, false); err != nil {
				slog.Warn("release microphone", "error", err)
			}
			return
		case now := <-ticker.Chan():
			if !s.live() {
				return
			}

			level := s.level()
			if r.onLevel != nil {
				r.onLevel(level)
			}

			res := s.vad.Process(level, now)
			if !res.ShouldStop {
				continue
			}
			slog.Info("silence detected, stopping recording", "silence", res.Silence)
			if err := r.finish(s, true); err != nil {
				slog.Warn("finish recording", "error", err)
			}
			return
		}
	}
}

// finish runs the single teardown path of a session: stop analysis,
// release the device, then encode and deliver when asked to.
func (r *Recorder) finish(s *session, deliver bool) error {
	if !s.stop() {
		return nil
	}
	defer func() {
		r.mu.Lock()
		if r.sess == s {
			r.sess = nil
		}
		r.mu.Unlock()
	}()

	var errs []error
	if err := r.src.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop capture: %w", err))
	}

	samples := s.flush()
	if !deliver {
		slog.Info("recording cancelled", "samples", len(samples))
		return errors.Join(errs...)
	}
	if len(samples) == 0 {
		slog.Warn("recording stopped with no audio")
		return errors.Join(errs...)
	}

	sampleRate := r.src.SampleRate()
	data, err := r.cfg.Encoder.Encode(samples, sampleRate)
	if err != nil {
		errs = append(errs, fmt.Errorf("encode recording: %w", err))
		return errors.Join(errs...)
	}

	p := Payload{
		Data:       base64.StdEncoding.EncodeToString(data),
		MIMEType:   r.cfg.Encoder.MIMEType(),
		Duration:   samplesDuration(len(samples), sampleRate),
		Samples:    samples,
		SampleRate: sampleRate,
	}
	slog.Info("recording finished", "duration", p.Duration, "bytes", len(data), "mime", p.MIMEType)
	s.onPayload(p)
	return errors.Join(errs...)
}
