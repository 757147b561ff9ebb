// Package speech speaks assistant replies aloud in the language they are
// written in.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/text/language"

	"go.aimuz.me/prakriti/internal/types"
)

// ErrSynthesisUnavailable is returned by engines that cannot speak on this
// machine. The Synthesizer treats it as a silent skip.
var ErrSynthesisUnavailable = types.ErrSynthesisUnavailable

// DefaultRate is slightly slower than natural speech.
const DefaultRate = 0.9

// Utterance is one request to an engine.
type Utterance struct {
	Text   string
	Locale language.Tag
	Voice  Voice // zero when no matching voice is installed
	Rate   float64
}

// Engine synthesizes and plays speech.
type Engine interface {
	// Voices lists installed voices. An empty list is valid.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak plays u and blocks until playback ends or ctx is cancelled.
	Speak(ctx context.Context, u Utterance) error
}

// Synthesizer plays at most one utterance at a time. A new Speak call
// cancels the one in progress.
type Synthesizer struct {
	engine Engine
	rate   float64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // closed when the current utterance goroutine exits
	closed bool
	voices []Voice
	listed bool
	spoken int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithRate overrides DefaultRate.
func WithRate(rate float64) Option {
	return func(s *Synthesizer) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// NewSynthesizer creates a Synthesizer. A nil engine yields one that
// silently skips every request.
func NewSynthesizer(engine Engine, opts ...Option) *Synthesizer {
	s := &Synthesizer{engine: engine, rate: DefaultRate}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak starts speaking text in the background, cancelling any utterance in
// progress. It does not wait for playback.
func (s *Synthesizer) Speak(ctx context.Context, text string) {
	text = CleanText(text)
	if text == "" || s.engine == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prevCancel, prevDone := s.cancel, s.done
	uctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.spoken++
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	go func() {
		defer close(done)
		defer cancel()

		// The previous utterance must be fully stopped before this one plays.
		if prevDone != nil {
			<-prevDone
		}
		if uctx.Err() != nil {
			return
		}

		u := s.utterance(uctx, text)
		err := s.engine.Speak(uctx, u)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			slog.Debug("utterance cancelled", "locale", u.Locale)
		case errors.Is(err, ErrSynthesisUnavailable):
			slog.Debug("speech synthesis unavailable, skipping")
		default:
			slog.Warn("speak", "locale", u.Locale, "error", err)
		}
	}()
}

// Cancel stops the utterance in progress, if any.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current utterance has finished or been cancelled.
func (s *Synthesizer) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels speech and rejects further requests.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	s.closed = true
	spoken := s.spoken
	s.mu.Unlock()

	s.Cancel()
	s.Wait()
	slog.Debug("speech closed", "utterances", spoken)
	return nil
}

// utterance builds the request for text, choosing locale and voice.
func (s *Synthesizer) utterance(ctx context.Context, text string) Utterance {
	locale := LocaleFor(text)
	u := Utterance{Text: text, Locale: locale, Rate: s.rate}
	if v, ok := PickVoice(s.installedVoices(ctx), locale); ok {
		u.Voice = v
	}
	return u
}

// installedVoices lists voices once; failures leave the engine default.
func (s *Synthesizer) installedVoices(ctx context.Context) []Voice {
	s.mu.Lock()
	if s.listed {
		v := s.voices
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()

	voices, err := s.engine.Voices(ctx)
	if err != nil {
		slog.Debug("list voices", "error", err)
		return nil
	}

	s.mu.Lock()
	s.voices, s.listed = voices, true
	s.mu.Unlock()
	return voices
}
