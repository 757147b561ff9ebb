package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultSpeechModel = "gpt-4o-mini-tts"
	defaultSpeechVoice = "alloy"

	// The pcm response format is 24 kHz signed 16-bit little-endian mono.
	pcmSampleRate = 24000
	pollInterval  = 50 * time.Millisecond
)

// OpenAIConfig holds configuration for OpenAIEngine.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Optional, defaults to OpenAI's API
	Model   string // Optional, defaults to gpt-4o-mini-tts
	Voice   string // Optional, defaults to alloy
}

// OpenAIEngine synthesizes speech with the OpenAI audio API and plays it on
// the default output device.
type OpenAIEngine struct {
	client openai.Client
	model  string
	voice  string

	once    sync.Once
	player  *oto.Context
	initErr error
}

// NewOpenAIEngine creates an engine. It fails with ErrSynthesisUnavailable
// when no API key is configured.
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no OpenAI API key", ErrSynthesisUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = defaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultSpeechVoice
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIEngine{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		voice:  cfg.Voice,
	}, nil
}

// Voices returns no installed voices; the API voices are not tied to a
// locale, so the language is conveyed through instructions instead.
func (e *OpenAIEngine) Voices(context.Context) ([]Voice, error) {
	return nil, nil
}

func (e *OpenAIEngine) Speak(ctx context.Context, u Utterance) error {
	otoCtx, err := e.output()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
	}

	resp, err := e.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          u.Text,
		Model:          openai.SpeechModel(e.model),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
		Speed:          openai.Float(u.Rate),
		Instructions:   openai.String(instructionsFor(u)),
	}, option.WithJSONSet("voice", e.voice))
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	p := otoCtx.NewPlayer(resp.Body)
	defer p.Close()
	p.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return p.Err()
}

// output opens the audio device once per process; oto allows only one
// context.
func (e *OpenAIEngine) output() (*oto.Context, error) {
	e.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   pcmSampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			e.initErr = fmt.Errorf("open audio output: %w", err)
			return
		}
		<-ready
		e.player = ctx
	})
	return e.player, e.initErr
}

func instructionsFor(u Utterance) string {
	if u.Locale == LocaleHindi {
		return "Speak in Hindi with a natural Indian accent, calmly and clearly."
	}
	return "Speak in English with an Indian accent, calmly and clearly."
}
