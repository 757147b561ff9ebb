package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"go.aimuz.me/prakriti/voice"
)

const (
	defaultWhisperModel = "whisper-1"
	requestTimeout      = 60 * time.Second
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("stt: API key required")

// WhisperAPI implements Provider with the OpenAI transcription endpoint or
// any compatible server.
type WhisperAPI struct {
	client openai.Client
	model  string
	ready  bool
}

// WhisperAPIConfig holds configuration for WhisperAPI.
type WhisperAPIConfig struct {
	APIKey  string
	BaseURL string // Optional, defaults to OpenAI's API
	Model   string // Optional, defaults to "whisper-1"
}

// NewWhisperAPI creates a new WhisperAPI provider.
func NewWhisperAPI(cfg WhisperAPIConfig) *WhisperAPI {
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(requestTimeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &WhisperAPI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		ready:  cfg.APIKey != "",
	}
}

func (w *WhisperAPI) Name() string  { return "whisper-api" }
func (w *WhisperAPI) IsReady() bool { return w.ready }

// Transcribe uploads the audio as WAV and returns the recognised text.
func (w *WhisperAPI) Transcribe(ctx context.Context, audio []float32, sampleRate int, language string) (*TranscribeResult, error) {
	if !w.ready {
		return nil, ErrNotConfigured
	}

	wavData, err := voice.EncodeWAV(audio, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("convert to WAV: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
		Model:          openai.AudioModel(w.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	// The API rejects "auto"; omitting the field means auto-detect.
	if language != "" && language != "auto" {
		params.Language = openai.String(language)
	}

	res, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	result := &TranscribeResult{Text: strings.TrimSpace(res.Text)}

	// Compatible servers may answer with plain json; the verbose fields are
	// optional.
	var verbose verboseResponse
	if err := json.Unmarshal([]byte(res.RawJSON()), &verbose); err == nil {
		result.Language = verbose.Language
		result.Duration = verbose.Duration
		result.Segments = make([]Segment, len(verbose.Segments))
		for i, seg := range verbose.Segments {
			result.Segments[i] = Segment{
				Text:  seg.Text,
				Start: time.Duration(seg.Start * float64(time.Second)),
				End:   time.Duration(seg.End * float64(time.Second)),
			}
		}
	}
	return result, nil
}

// verboseResponse holds the verbose_json fields beyond the text.
type verboseResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

var _ Provider = (*WhisperAPI)(nil)
