// Package livechat coordinates one conversation with the assistant: it owns
// the transcript, allows one turn in flight at a time, and decides when a
// reply is spoken aloud.
package livechat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"go.aimuz.me/prakriti/internal/types"
	"go.aimuz.me/prakriti/stt"
	"go.aimuz.me/prakriti/voice"
)

const (
	// Greeting is shown when a conversation has no history. It is not
	// persisted.
	Greeting = "Namaste! I am Prakriti. 🌿\n\nI can analyze your crops, check the weather, and speak in your local language.\n\nHow can I help you today?"

	// AudioPlaceholder is the transcript text of a voice turn that was not
	// captioned.
	AudioPlaceholder = "🎤 Audio Message"

	// ImagePlaceholder is the transcript text of an image-only turn whose
	// upload failed.
	ImagePlaceholder = "📷 Image"

	defaultCaptionTimeout = 15 * time.Second
	persistTimeout        = 10 * time.Second
)

// ErrClosed is returned for operations on a closed Coordinator.
var ErrClosed = errors.New("livechat: conversation closed")

// Connection is the duplex channel to the assistant.
type Connection interface {
	Send(ctx context.Context, env types.Envelope) error
	OnMessage(fn func(types.Envelope))
	Close() error
}

// Recorder captures one spoken turn at a time.
type Recorder interface {
	Start(ctx context.Context, onPayload func(voice.Payload)) error
	Stop() error
	Cancel() error
}

// Speaker reads replies aloud.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Close() error
}

// Store persists transcript messages.
type Store interface {
	Append(ctx context.Context, conversationID string, m types.Message) error
	Load(ctx context.Context, conversationID string) ([]types.Message, error)
}

// Uploader turns image bytes into a durable URI.
type Uploader interface {
	Upload(ctx context.Context, data []byte, suggestedPath string) (string, error)
}

// Captioner transcribes voice turns for display.
type Captioner interface {
	Transcribe(ctx context.Context, audio []float32, sampleRate int, language string) (*stt.TranscribeResult, error)
}

// Detector returns the ISO 639-1 code of a text, or "".
type Detector interface {
	Detect(text string) string
}

// Events receives changes for display. Nil fields are skipped. Callbacks
// run on the goroutine that caused the change and must not block.
type Events struct {
	Message func(types.Message)
	State   func(types.TurnState)
	Notice  func(string)
}

// Config wires a Coordinator to its collaborators. Only Conn is required.
type Config struct {
	ConversationID string
	Conn           Connection
	Recorder       Recorder
	Speaker        Speaker
	Store          Store
	Uploader       Uploader
	Captioner      Captioner
	Detector       Detector
	Events         Events
	Clock          clockwork.Clock

	// CaptionTimeout bounds how long a voice turn waits for its caption.
	CaptionTimeout time.Duration
}

// Image is an attachment picked by the user.
type Image struct {
	Data []byte
	Name string // original file name, used for the extension
}

// Input is one user action. At least one field must be set.
type Input struct {
	Text  string
	Image *Image
	Audio *voice.Payload
}

func (in Input) empty() bool {
	return strings.TrimSpace(in.Text) == "" && in.Image == nil && in.Audio == nil
}

// Coordinator runs the turn state machine IDLE → AWAITING_RESPONSE → IDLE.
type Coordinator struct {
	cfg   Config
	clock clockwork.Clock

	mu         sync.Mutex
	transcript []types.Message
	state      types.TurnState
	voiceTurn  bool // the pending turn was spoken
	closed     bool

	// ctx outlives individual calls; it is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	persisting sync.WaitGroup
}

// New creates a Coordinator and subscribes it to cfg.Conn.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Conn == nil {
		return nil, errors.New("livechat: Config.Conn is required")
	}
	if cfg.ConversationID == "" {
		cfg.ConversationID = "default"
	}
	if cfg.CaptionTimeout <= 0 {
		cfg.CaptionTimeout = defaultCaptionTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:    cfg,
		clock:  clock,
		ctx:    ctx,
		cancel: cancel,
	}
	cfg.Conn.OnMessage(c.HandleEnvelope)
	return c, nil
}

// LoadHistory fills the transcript from the store, or seeds the greeting
// when there is none. A load failure is recovered with the greeting.
func (c *Coordinator) LoadHistory(ctx context.Context) types.Outcome {
	var (
		msgs []types.Message
		err  error
	)
	if c.cfg.Store != nil {
		msgs, err = c.cfg.Store.Load(ctx, c.cfg.ConversationID)
		if err != nil {
			slog.Warn("load history", "conversation", c.cfg.ConversationID, "error", err)
			msgs = nil
		}
	}
	if len(msgs) == 0 {
		msgs = []types.Message{c.newMessage(types.RoleAssistant, Greeting)}
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, msgs...)
	c.mu.Unlock()

	for _, m := range msgs {
		c.emitMessage(m)
	}
	slog.Info("history loaded", "conversation", c.cfg.ConversationID, "messages", len(msgs))

	if err != nil {
		return types.Recovered(err)
	}
	return types.OK()
}

// Submit sends one user turn. It is rejected while a reply is pending or
// when in is empty. The returned outcome is also reported via Events.Notice
// when it must be shown.
func (c *Coordinator) Submit(ctx context.Context, in Input) types.Outcome {
	out := c.submit(ctx, in)
	if n := types.Notice(out); n != "" && c.cfg.Events.Notice != nil {
		c.cfg.Events.Notice(n)
	}
	return out
}

func (c *Coordinator) submit(ctx context.Context, in Input) types.Outcome {
	if in.empty() {
		return types.Surfaced(types.ErrEmptyInput)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.Surfaced(ErrClosed)
	}
	if c.state == types.TurnAwaitingResponse {
		c.mu.Unlock()
		return types.Surfaced(types.ErrTurnInProgress)
	}
	c.state = types.TurnAwaitingResponse
	c.voiceTurn = in.Audio != nil
	c.mu.Unlock()
	c.emitState(types.TurnAwaitingResponse)

	var recovered error
	msg := c.newMessage(types.RoleUser, strings.TrimSpace(in.Text))

	if in.Image != nil {
		ref, err := c.upload(ctx, in.Image)
		if err != nil {
			slog.Warn("image upload failed, sending without it", "name", in.Image.Name, "error", err)
			recovered = err
		}
		msg.ImageRef = ref
	}

	env := types.TextEnvelope(outboundText(msg.Text, msg.ImageRef))
	if in.Audio != nil {
		msg.Text = c.caption(ctx, in.Audio)
		env = types.AudioEnvelope(in.Audio.Data, in.Audio.MIMEType)
	}
	if !msg.Valid() {
		msg.Text = ImagePlaceholder
		env = types.TextEnvelope(ImagePlaceholder)
	}
	if msg.Text != AudioPlaceholder && msg.Text != ImagePlaceholder {
		msg.Lang = c.detect(msg.Text)
	}

	// Optimistic: the turn is shown before the send is attempted.
	c.appendMessage(msg)
	c.persist(msg)

	if err := c.cfg.Conn.Send(ctx, env); err != nil {
		slog.Warn("send turn", "kind", env.Kind, "error", err)
		if c.abandonTurn() {
			c.emitState(types.TurnIdle)
		}
		return types.Surfaced(err)
	}

	slog.Info("turn sent", "kind", env.Kind, "image", msg.ImageRef != "")
	if recovered != nil {
		return types.Recovered(recovered)
	}
	return types.OK()
}

// HandleEnvelope consumes inbound envelopes. Only responses are acted on.
func (c *Coordinator) HandleEnvelope(env types.Envelope) {
	if env.Kind != types.KindResponse {
		return
	}
	text := strings.TrimSpace(env.Data)
	var msg types.Message
	if text != "" {
		msg = c.newMessage(types.RoleAssistant, text)
		msg.Lang = c.detect(text)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	speak := c.state == types.TurnAwaitingResponse && c.voiceTurn
	wasAwaiting := c.state == types.TurnAwaitingResponse
	c.state = types.TurnIdle
	c.voiceTurn = false

	if text != "" {
		c.transcript = append(c.transcript, msg)
	}
	c.mu.Unlock()

	if text == "" {
		slog.Warn("empty response from assistant")
	} else {
		c.emitMessage(msg)
		c.persist(msg)
	}
	if wasAwaiting {
		c.emitState(types.TurnIdle)
	}

	if speak && text != "" && c.cfg.Speaker != nil {
		c.cfg.Speaker.Speak(c.ctx, text)
	}
}

// ConnectionChanged reacts to the state of the channel. A reply pending
// when the channel closes is never delivered, so the turn is given up and
// the user may send again once it reconnects.
func (c *Coordinator) ConnectionChanged(s types.ConnState) {
	if s != types.ConnClosed {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed || !c.abandonTurn() {
		return
	}
	slog.Warn("connection lost while awaiting reply", "conversation", c.cfg.ConversationID)
	c.emitState(types.TurnIdle)
	if c.cfg.Events.Notice != nil {
		c.cfg.Events.Notice(types.Notice(types.Surfaced(types.ErrTransportClosed)))
	}
}

// abandonTurn returns the state machine to idle and reports whether a turn
// was pending.
func (c *Coordinator) abandonTurn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.TurnAwaitingResponse {
		return false
	}
	c.state = types.TurnIdle
	c.voiceTurn = false
	return true
}

// StartRecording begins a voice turn. The recording is submitted when the
// speaker falls silent or StopRecording is called.
func (c *Coordinator) StartRecording(ctx context.Context) types.Outcome {
	out := c.startRecording(ctx)
	if n := types.Notice(out); n != "" && c.cfg.Events.Notice != nil {
		c.cfg.Events.Notice(n)
	}
	return out
}

func (c *Coordinator) startRecording(ctx context.Context) types.Outcome {
	if c.cfg.Recorder == nil {
		return types.Surfaced(fmt.Errorf("%w: no recorder configured", types.ErrDeviceUnavailable))
	}

	c.mu.Lock()
	closed, busy := c.closed, c.state == types.TurnAwaitingResponse
	c.mu.Unlock()
	switch {
	case closed:
		return types.Surfaced(ErrClosed)
	case busy:
		return types.Surfaced(types.ErrTurnInProgress)
	}

	err := c.cfg.Recorder.Start(ctx, func(p voice.Payload) {
		out := c.Submit(c.ctx, Input{Audio: &p})
		slog.Debug("voice turn submitted", "outcome", out, "duration", p.Duration)
	})
	if err != nil {
		return types.Surfaced(err)
	}
	return types.OK()
}

// StopRecording ends the recording early and submits it.
func (c *Coordinator) StopRecording() types.Outcome {
	if c.cfg.Recorder == nil {
		return types.OK()
	}
	if err := c.cfg.Recorder.Stop(); err != nil {
		slog.Warn("stop recording", "error", err)
		return types.Recovered(err)
	}
	return types.OK()
}

// Transcript returns a copy of the messages so far, in order.
func (c *Coordinator) Transcript() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// State returns the current turn state.
func (c *Coordinator) State() types.TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close closes the connection, discards any recording and silences speech.
// Every release runs even when an earlier one fails. Pending persistence
// writes are waited for.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if err := c.cfg.Conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.Cancel(); err != nil {
			errs = append(errs, fmt.Errorf("cancel recording: %w", err))
		}
	}
	if c.cfg.Speaker != nil {
		if err := c.cfg.Speaker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close speaker: %w", err))
		}
	}
	c.cancel()
	c.persisting.Wait()

	slog.Info("conversation closed", "conversation", c.cfg.ConversationID)
	return errors.Join(errs...)
}

func (c *Coordinator) newMessage(role types.Role, text string) types.Message {
	return types.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: c.clock.Now(),
	}
}

func (c *Coordinator) appendMessage(m types.Message) {
	c.mu.Lock()
	c.transcript = append(c.transcript, m)
	c.mu.Unlock()
	c.emitMessage(m)
}

func (c *Coordinator) emitMessage(m types.Message) {
	if c.cfg.Events.Message != nil {
		c.cfg.Events.Message(m)
	}
}

func (c *Coordinator) emitState(s types.TurnState) {
	if c.cfg.Events.State != nil {
		c.cfg.Events.State(s)
	}
}

// persist writes m in the background. Failures are logged only.
func (c *Coordinator) persist(m types.Message) {
	if c.cfg.Store == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		slog.Debug("conversation closed, not persisting", "id", m.ID)
		return
	}
	c.persisting.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.cfg.Store.Append(ctx, c.cfg.ConversationID, m); err != nil {
			slog.Warn("persist message", "id", m.ID, "role", m.Role, "error", err)
		}
	})
}

func (c *Coordinator) upload(ctx context.Context, img *Image) (string, error) {
	if c.cfg.Uploader == nil {
		return "", fmt.Errorf("%w: no blob store configured", types.ErrStorage)
	}
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty image", types.ErrStorage)
	}
	ref, err := c.cfg.Uploader.Upload(ctx, img.Data, img.Name)
	if err != nil {
		if !errors.Is(err, types.ErrStorage) {
			err = fmt.Errorf("%w: %v", types.ErrStorage, err)
		}
		return "", err
	}
	return ref, nil
}

// caption returns the transcript text of a voice turn.
func (c *Coordinator) caption(ctx context.Context, p *voice.Payload) string {
	if c.cfg.Captioner == nil || len(p.Samples) == 0 {
		return AudioPlaceholder
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CaptionTimeout)
	defer cancel()

	res, err := c.cfg.Captioner.Transcribe(ctx, p.Samples, p.SampleRate, "")
	if err != nil {
		slog.Warn("caption voice turn", "error", err)
		return AudioPlaceholder
	}
	if text := strings.TrimSpace(res.Text); text != "" {
		return "🎤 " + text
	}
	return AudioPlaceholder
}

func (c *Coordinator) detect(text string) string {
	if c.cfg.Detector == nil {
		return ""
	}
	return c.cfg.Detector.Detect(text)
}

// outboundText is the text envelope payload for a turn. The image travels
// as its URI on a separate line.
func outboundText(text, imageRef string) string {
	switch {
	case imageRef == "":
		return text
	case text == "":
		return "Image: " + imageRef
	}
	return text + "\n\nImage: " + imageRef
}
