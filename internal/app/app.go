package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"go.aimuz.me/prakriti/audiocapture"
	"go.aimuz.me/prakriti/blob"
	"go.aimuz.me/prakriti/config"
	"go.aimuz.me/prakriti/geo"
	"go.aimuz.me/prakriti/history"
	"go.aimuz.me/prakriti/internal/types"
	"go.aimuz.me/prakriti/langdetect"
	"go.aimuz.me/prakriti/livechat"
	"go.aimuz.me/prakriti/realtime"
	"go.aimuz.me/prakriti/screenshot"
	"go.aimuz.me/prakriti/speech"
	"go.aimuz.me/prakriti/stt"
	"go.aimuz.me/prakriti/voice"
)

// Emitter delivers named events to the front end.
type Emitter func(name string, data any)

// Service owns every component of one chat session.
// This struct focuses on orchestration; behavior lives in the packages it wires.
type Service struct {
	cfg     *config.Config
	version string
	clock   clockwork.Clock
	emitter Emitter

	// Overrides, set via options
	dialer   realtime.Dialer
	capturer audiocapture.Capturer
	engine   speech.Engine
	uploader blob.Store

	conn     *realtime.Conn
	chat     *livechat.Coordinator
	history  *history.Store
	recorder *voice.Recorder
	levels   *LevelForwarder
	link     *ConnectionWatch
}

// Option configures a Service.
type Option func(*Service)

// WithDialer replaces the websocket dialer.
func WithDialer(d realtime.Dialer) Option {
	return func(s *Service) { s.dialer = d }
}

// WithCapturer replaces the default microphone.
func WithCapturer(c audiocapture.Capturer) Option {
	return func(s *Service) { s.capturer = c }
}

// WithSpeechEngine replaces the engine chosen from configuration.
func WithSpeechEngine(e speech.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithUploader replaces the blob store chosen from configuration.
func WithUploader(u blob.Store) Option {
	return func(s *Service) { s.uploader = u }
}

// WithClock replaces the clock shared by the connection, recorder and chat.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// New creates a new Service. Call Init to start it.
func New(version string, opts ...Option) *Service {
	s := &Service{version: version, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init builds the components described by cfg, loads the conversation
// history and starts connecting. Only an unusable endpoint is fatal;
// every optional component degrades to absent.
func (s *Service) Init(ctx context.Context, cfg *config.Config, emit Emitter) error {
	if emit == nil {
		emit = func(string, any) {}
	}
	s.cfg = cfg
	s.emitter = emit

	url, err := realtime.Endpoint(cfg.Server.Host, cfg.Server.Port, cfg.Server.Path)
	if err != nil {
		return fmt.Errorf("live chat endpoint: %w", err)
	}

	connOpts := []realtime.Option{
		realtime.WithClock(s.clock),
		realtime.WithLocator(s.buildLocator()),
	}
	if s.dialer != nil {
		connOpts = append(connOpts, realtime.WithDialer(s.dialer))
	}
	s.conn = realtime.New(realtime.Config{URL: url}, connOpts...)
	s.link = NewConnectionWatch(s.emit, s.conn.Attempts)

	s.levels = NewLevelForwarder(s.emit, s.clock)
	s.setupHistory()

	chatCfg := livechat.Config{
		ConversationID: cfg.UserID,
		Conn:           s.conn,
		Speaker:        s.buildSpeaker(),
		Detector:       langdetect.New(),
		Clock:          s.clock,
		Events: livechat.Events{
			Message: func(m types.Message) { s.emit(EventMessage, m) },
			State:   func(t types.TurnState) { s.emit(EventTurnState, t.String()) },
			Notice:  func(n string) { s.emit(EventNotice, n) },
		},
	}
	if s.history != nil {
		chatCfg.Store = s.history
	}
	if rec := s.buildRecorder(); rec != nil {
		s.recorder = rec
		chatCfg.Recorder = rec
	}
	if up := s.buildUploader(); up != nil {
		chatCfg.Uploader = up
	}
	if captioner := s.buildCaptioner(); captioner != nil {
		chatCfg.Captioner = captioner
	}

	chat, err := livechat.New(chatCfg)
	if err != nil {
		s.closeHistory()
		return fmt.Errorf("create chat: %w", err)
	}

	s.conn.OnStateChange(func(st types.ConnState) {
		s.link.Update(st)
		chat.ConnectionChanged(st)
	})
	chat.LoadHistory(ctx)
	if err := s.conn.Connect(ctx); err != nil {
		_ = chat.Close()
		s.closeHistory()
		return fmt.Errorf("connect: %w", err)
	}
	s.chat = chat
	slog.Info("live chat started", "version", s.version, "url", url, "conversation", cfg.UserID)
	return nil
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.chat != nil {
		if err := s.chat.Close(); err != nil {
			slog.Error("close chat", "error", err)
		}
	}
	s.closeHistory()
}

// emit is a safe wrapper around the front end emitter.
func (s *Service) emit(name string, data any) {
	if s.emitter != nil {
		s.emitter(name, data)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversation
// ─────────────────────────────────────────────────────────────────────────────

// Send submits a text turn.
func (s *Service) Send(ctx context.Context, text string) types.Outcome {
	return s.chat.Submit(ctx, livechat.Input{Text: text})
}

// SendImage submits the image at path with an optional caption.
func (s *Service) SendImage(ctx context.Context, path, caption string) types.Outcome {
	data, err := os.ReadFile(path)
	if err != nil {
		o := types.Surfaced(fmt.Errorf("read image: %w", err))
		s.emit(EventNotice, types.Notice(o))
		return o
	}
	return s.chat.Submit(ctx, livechat.Input{
		Text:  caption,
		Image: &livechat.Image{Data: data, Name: filepath.Base(path)},
	})
}

// SendScreenshot lets the user select a screen region and submits it as
// the image of a turn. A dismissed selection sends nothing.
func (s *Service) SendScreenshot(ctx context.Context, caption string) types.Outcome {
	if !screenshot.HasPermission() {
		screenshot.RequestPermission()
		o := types.Surfaced(errors.New("screen recording permission required"))
		s.emit(EventNotice, types.Notice(o))
		return o
	}

	data, err := screenshot.Capture(ctx)
	if errors.Is(err, screenshot.ErrCancelled) {
		return types.OK()
	}
	if err != nil {
		o := types.Surfaced(fmt.Errorf("capture screenshot: %w", err))
		s.emit(EventNotice, types.Notice(o))
		return o
	}
	return s.chat.Submit(ctx, livechat.Input{
		Text:  caption,
		Image: &livechat.Image{Data: data, Name: "screenshot.png"},
	})
}

// StartRecording begins a voice turn. It ends on silence or StopRecording.
func (s *Service) StartRecording(ctx context.Context) types.Outcome {
	s.levels.Reset()
	return s.chat.StartRecording(ctx)
}

// StopRecording ends the voice turn in progress.
func (s *Service) StopRecording() types.Outcome {
	return s.chat.StopRecording()
}

// Recording reports whether the microphone is in use.
func (s *Service) Recording() bool {
	return s.recorder != nil && s.recorder.Active()
}

// Transcript returns the conversation so far.
func (s *Service) Transcript() []types.Message {
	return s.chat.Transcript()
}

// TurnState returns whether a reply is pending.
func (s *Service) TurnState() types.TurnState {
	return s.chat.State()
}

// ConnectionStatus returns the live channel status.
func (s *Service) ConnectionStatus() ConnectionStatus {
	return s.link.Status()
}

// ─────────────────────────────────────────────────────────────────────────────
// Component setup
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) setupHistory() {
	dir := s.cfg.HistoryDir
	if dir == "" {
		base, err := config.Dir()
		if err != nil {
			slog.Error("get config dir for history", "error", err)
			return
		}
		dir = filepath.Join(base, "history")
	}

	store, err := history.Open(history.Options{Dir: dir})
	if err != nil {
		slog.Error("open history", "error", err)
		return
	}
	s.history = store
	slog.Info("history opened", "path", dir)
}

func (s *Service) closeHistory() {
	if s.history == nil {
		return
	}
	if err := s.history.Close(); err != nil {
		slog.Error("close history", "error", err)
	}
	s.history = nil
}

func (s *Service) buildLocator() realtime.Locator {
	loc := s.cfg.Location
	switch loc.Mode {
	case "static":
		return geo.Static(types.Position{Latitude: loc.Latitude, Longitude: loc.Longitude})
	case "off":
		return geo.Disabled{}
	default:
		return geo.NewIPLocator(loc.LookupURL)
	}
}

// buildRecorder returns nil when no microphone can be set up; voice turns
// then surface ErrDeviceUnavailable.
func (s *Service) buildRecorder() *voice.Recorder {
	capturer := s.capturer
	if capturer == nil {
		c, err := audiocapture.New(s.cfg.Audio.SampleRate)
		if err != nil {
			slog.Warn("microphone unavailable", "error", err)
			return nil
		}
		capturer = c
	}

	enc, err := voice.NewEncoder(s.cfg.Audio.Encoding)
	if err != nil {
		slog.Warn("audio encoder", "error", err)
		enc = voice.WAVEncoder{}
	}
	return voice.NewRecorder(voice.Config{
		Threshold:   s.cfg.Audio.Threshold,
		QuietWindow: s.cfg.Audio.QuietWindow(),
		Encoder:     enc,
	}, capturer,
		voice.WithClock(s.clock),
		voice.WithLevelHandler(s.levels.Forward),
	)
}

// buildSpeaker always returns a Synthesizer; without an engine it skips
// every reply silently.
func (s *Service) buildSpeaker() *speech.Synthesizer {
	engine := s.engine
	if engine == nil {
		engine = s.buildSpeechEngine()
	}
	return speech.NewSynthesizer(engine, speech.WithRate(s.cfg.Speech.Rate))
}

func (s *Service) buildSpeechEngine() speech.Engine {
	switch s.cfg.Speech.Engine {
	case "off":
		return nil
	case "openai":
		cred := s.cfg.GetCredential(s.cfg.Speech.CredentialID)
		if cred == nil {
			slog.Warn("speech credential not found", "id", s.cfg.Speech.CredentialID)
			return nil
		}
		e, err := speech.NewOpenAIEngine(speech.OpenAIConfig{
			APIKey:  cred.APIKey,
			BaseURL: cred.BaseURL,
			Model:   s.cfg.Speech.Model,
			Voice:   s.cfg.Speech.Voice,
		})
		if err != nil {
			slog.Warn("openai speech", "error", err)
			return nil
		}
		return e
	default:
		e, err := speech.NewCommandEngine()
		if err != nil {
			slog.Info("system speech unavailable", "error", err)
			return nil
		}
		slog.Debug("system speech", "program", e.Name())
		return e
	}
}

func (s *Service) buildUploader() blob.Store {
	if s.uploader != nil {
		return s.uploader
	}

	st := s.cfg.Storage
	if st.Backend == "s3" {
		store, err := blob.NewS3FromConfig(blob.S3Config{
			Bucket:          st.Bucket,
			Region:          st.Region,
			Endpoint:        st.Endpoint,
			AccessKeyID:     st.AccessKeyID,
			SecretAccessKey: st.SecretAccessKey,
			PublicBaseURL:   st.PublicBaseURL,
		})
		if err != nil {
			slog.Error("s3 storage", "error", err)
			return nil
		}
		return store
	}

	dir := st.Dir
	if dir == "" {
		base, err := config.Dir()
		if err != nil {
			slog.Error("get config dir for uploads", "error", err)
			return nil
		}
		dir = filepath.Join(base, "uploads")
	}
	store, err := blob.NewLocal(dir)
	if err != nil {
		slog.Error("local storage", "error", err)
		return nil
	}
	return store
}

func (s *Service) buildCaptioner() livechat.Captioner {
	cred := s.cfg.GetCredential(s.cfg.STT.CredentialID)
	if cred == nil {
		return nil
	}
	return stt.NewWhisperAPI(stt.WhisperAPIConfig{
		APIKey:  cred.APIKey,
		BaseURL: cred.BaseURL,
		Model:   s.cfg.STT.Model,
	})
}
