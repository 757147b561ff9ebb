package voice

import (
	"testing"
	"time"
)

// TestVAD_Classification tests single-frame classification.
func TestVAD_Classification(t *testing.T) {
	start := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		level     float64
		at        time.Duration
		wantEvent EventType
		wantStop  bool
	}{
		{"loud frame", 40, 100 * time.Millisecond, EventSpeech, false},
		{"just above threshold", 8.01, 3 * time.Second, EventSpeech, false},
		{"at threshold is silence", 8, 500 * time.Millisecond, EventSilence, false},
		{"silent within window", 0, 1999 * time.Millisecond, EventSilence, false},
		{"silent exactly at window", 0, 2 * time.Second, EventSilence, false},
		{"silent past window", 0, 2100 * time.Millisecond, EventQuiet, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVAD(0, 0)
			v.Reset(start)

			res := v.Process(tt.level, start.Add(tt.at))
			if res.Event != tt.wantEvent {
				t.Errorf("Event = %v, want %v", res.Event, tt.wantEvent)
			}
			if res.ShouldStop != tt.wantStop {
				t.Errorf("ShouldStop = %v, want %v", res.ShouldStop, tt.wantStop)
			}
		})
	}
}

// TestVAD_ContinuousSpeechNeverStops feeds loud frames for a long time.
func TestVAD_ContinuousSpeechNeverStops(t *testing.T) {
	start := time.Unix(1700000000, 0)
	v := NewVAD(DefaultThreshold, DefaultQuietWindow)
	v.Reset(start)

	for i := 1; i <= 60*60; i++ { // one minute at ~60 fps
		now := start.Add(time.Duration(i) * DefaultFrameInterval)
		if res := v.Process(50, now); res.ShouldStop {
			t.Fatalf("frame %d: ShouldStop = true on continuous speech", i)
		}
	}
	if v.stopped {
		t.Error("stopped = true, want false")
	}
}

// TestVAD_StopsExactlyOnce checks the quiet window fires a single time.
func TestVAD_StopsExactlyOnce(t *testing.T) {
	start := time.Unix(1700000000, 0)
	v := NewVAD(DefaultThreshold, DefaultQuietWindow)
	v.Reset(start)

	stops := 0
	var firstStop time.Duration
	for i := 1; i <= 300; i++ { // ~4.8 s of silence
		at := time.Duration(i) * DefaultFrameInterval
		if res := v.Process(0, start.Add(at)); res.ShouldStop {
			if stops == 0 {
				firstStop = at
			}
			stops++
		}
	}

	if stops != 1 {
		t.Fatalf("stops = %d, want 1", stops)
	}
	if firstStop <= DefaultQuietWindow {
		t.Errorf("stopped after %v, want > %v", firstStop, DefaultQuietWindow)
	}
}

// TestVAD_SpeechResetsSilence checks that speech restarts the quiet window.
func TestVAD_SpeechResetsSilence(t *testing.T) {
	start := time.Unix(1700000000, 0)
	v := NewVAD(DefaultThreshold, DefaultQuietWindow)
	v.Reset(start)

	sequence := []struct {
		name     string
		level    float64
		at       time.Duration
		wantStop bool
	}{
		{"1. quiet", 0, 1500 * time.Millisecond, false},
		{"2. speech resets", 30, 1900 * time.Millisecond, false},
		{"3. quiet again", 0, 3500 * time.Millisecond, false},
		{"4. still under window", 0, 3900 * time.Millisecond, false},
		{"5. window elapsed", 0, 3950 * time.Millisecond, true},
		{"6. latched", 0, 6 * time.Second, false},
	}

	for _, step := range sequence {
		t.Run(step.name, func(t *testing.T) {
			res := v.Process(step.level, start.Add(step.at))
			if res.ShouldStop != step.wantStop {
				t.Errorf("ShouldStop = %v, want %v (event %v, silence %v)",
					res.ShouldStop, step.wantStop, res.Event, res.Silence)
			}
		})
	}
}

// TestVAD_Reset re-arms a latched detector.
func TestVAD_Reset(t *testing.T) {
	start := time.Unix(1700000000, 0)
	v := NewVAD(DefaultThreshold, DefaultQuietWindow)
	v.Reset(start)

	if res := v.Process(0, start.Add(3*time.Second)); !res.ShouldStop {
		t.Fatal("expected stop after 3s of silence")
	}

	v.Reset(start.Add(3 * time.Second))
	if v.stopped {
		t.Fatal("stopped = true after Reset")
	}
	if res := v.Process(0, start.Add(4*time.Second)); res.ShouldStop {
		t.Error("ShouldStop = true 1s after Reset")
	}
}
