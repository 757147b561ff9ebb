package voice

import "time"

// Defaults for NewVAD.
const (
	DefaultThreshold   = 8.0 // mean byte energy, 0..255
	DefaultQuietWindow = 2 * time.Second
)

// VAD (Voice Activity Detector) decides when a speaker has gone quiet.
// It consumes one mean spectral level per analysis frame.
type VAD struct {
	threshold float64       // levels above this count as speech
	quiet     time.Duration // silence longer than this ends the utterance

	silenceStart time.Time
	stopped      bool
}

// NewVAD creates a detector. Zero values select the defaults.
func NewVAD(threshold float64, quiet time.Duration) *VAD {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	return &VAD{threshold: threshold, quiet: quiet}
}

// EventType represents the type of frame classification.
type EventType int

const (
	EventNone EventType = iota
	// EventSpeech: level above threshold, silence timer reset.
	EventSpeech
	// EventSilence: below threshold, quiet window not yet elapsed.
	EventSilence
	// EventQuiet: quiet window elapsed, the utterance is complete.
	EventQuiet
)

func (e EventType) String() string {
	switch e {
	case EventSpeech:
		return "speech"
	case EventSilence:
		return "silence"
	case EventQuiet:
		return "quiet"
	}
	return "none"
}

// VADResult contains the result of processing one frame.
type VADResult struct {
	Event      EventType
	Silence    time.Duration // time since the last speech frame
	ShouldStop bool          // true on exactly one frame per Reset
}

// Reset starts a new utterance at now.
func (v *VAD) Reset(now time.Time) {
	v.silenceStart = now
	v.stopped = false
}

// Process classifies one frame level observed at now.
func (v *VAD) Process(level float64, now time.Time) VADResult {
	if v.stopped {
		return VADResult{Event: EventNone}
	}

	if level > v.threshold {
		v.silenceStart = now
		return VADResult{Event: EventSpeech}
	}

	silence := now.Sub(v.silenceStart)
	if silence > v.quiet {
		v.stopped = true
		return VADResult{Event: EventQuiet, Silence: silence, ShouldStop: true}
	}
	return VADResult{Event: EventSilence, Silence: silence}
}
