// Package stt captions voice turns so the transcript shows what was said
// instead of a placeholder.
package stt

import (
	"context"
	"time"
)

// TranscribeResult represents the result of a transcription.
type TranscribeResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language"` // detected language code
	Duration float64   `json:"duration"` // seconds
	Segments []Segment `json:"segments"`
}

// Segment represents a time-stamped audio segment.
type Segment struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Provider converts recorded speech to text.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// IsReady reports whether Transcribe can be called.
	IsReady() bool

	// Transcribe converts mono PCM samples to text. language is an ISO
	// 639-1 hint; empty means auto-detect.
	Transcribe(ctx context.Context, audio []float32, sampleRate int, language string) (*TranscribeResult, error)
}
