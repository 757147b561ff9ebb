// Package types provides shared type definitions for the application.
package types

import (
	"errors"
	"time"
)

// Role identifies the author of a transcript message.
// The string values match what the backend and the history store use.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "model"
)

// Message is one entry of a conversation transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	ImageRef  string    `json:"image_url,omitempty"`
	Lang      string    `json:"lang,omitempty"` // ISO 639-1, empty when undetected
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the message carries content: text, an image, or both.
func (m Message) Valid() bool {
	return m.Text != "" || m.ImageRef != ""
}

// ─────────────────────────────────────────────────────────────────────────────
// Envelopes
// ─────────────────────────────────────────────────────────────────────────────

// EnvelopeKind discriminates envelopes exchanged over the live channel.
type EnvelopeKind string

const (
	KindText     EnvelopeKind = "text"
	KindAudio    EnvelopeKind = "audio"
	KindLocation EnvelopeKind = "location"
	KindResponse EnvelopeKind = "response"
)

// Envelope is a typed message unit. It is passed by value and never mutated
// after construction.
type Envelope struct {
	Kind     EnvelopeKind
	Data     string // plain text, or base64 for audio
	MIMEType string // audio only
}

// TextEnvelope builds an outbound text envelope.
func TextEnvelope(text string) Envelope {
	return Envelope{Kind: KindText, Data: text}
}

// AudioEnvelope builds an outbound audio envelope from a base64 payload.
func AudioEnvelope(b64, mimeType string) Envelope {
	return Envelope{Kind: KindAudio, Data: b64, MIMEType: mimeType}
}

// Position is a geographic fix in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ─────────────────────────────────────────────────────────────────────────────
// State machines
// ─────────────────────────────────────────────────────────────────────────────

// ConnState is the state of the live channel.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// TurnState is the per-turn state of the conversation.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAwaitingResponse
)

func (s TurnState) String() string {
	if s == TurnAwaitingResponse {
		return "awaiting-response"
	}
	return "idle"
}

// ─────────────────────────────────────────────────────────────────────────────
// Outcomes
// ─────────────────────────────────────────────────────────────────────────────

// Error taxonomy shared by every component. Packages re-export the ones they
// return so callers can match with errors.Is on either name.
var (
	ErrDeviceUnavailable    = errors.New("microphone unavailable")
	ErrTransportClosed      = errors.New("transport closed")
	ErrPersistence          = errors.New("persistence failure")
	ErrStorage              = errors.New("storage failure")
	ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")
	ErrTurnInProgress       = errors.New("a reply is still pending")
	ErrEmptyInput           = errors.New("nothing to send")
)

// Status classifies how an operation ended.
type Status int

const (
	StatusOK Status = iota
	// StatusRecovered means a side function failed and was handled locally.
	StatusRecovered
	// StatusSurfaced means the primary path failed and the user must be told.
	StatusSurfaced
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRecovered:
		return "recovered"
	case StatusSurfaced:
		return "surfaced"
	}
	return "unknown"
}

// Outcome is the result of a user-facing operation.
type Outcome struct {
	Status Status
	Err    error
}

func OK() Outcome                 { return Outcome{Status: StatusOK} }
func Recovered(err error) Outcome { return Outcome{Status: StatusRecovered, Err: err} }
func Surfaced(err error) Outcome  { return Outcome{Status: StatusSurfaced, Err: err} }
func (o Outcome) Surfaced() bool  { return o.Status == StatusSurfaced }
func (o Outcome) Recovered() bool { return o.Status == StatusRecovered }
func (o Outcome) String() string  { return o.Status.String() }

// Notice returns the message to show the user for an outcome, or "" when
// nothing should be shown. Recovered failures are never shown.
func Notice(o Outcome) string {
	if o.Status != StatusSurfaced {
		return ""
	}
	switch {
	case errors.Is(o.Err, ErrTransportClosed):
		return "Connection lost. Reconnecting…"
	case errors.Is(o.Err, ErrDeviceUnavailable):
		return "Microphone unavailable. Check the input device and its permissions."
	case errors.Is(o.Err, ErrTurnInProgress):
		return "Please wait for the current reply."
	case errors.Is(o.Err, ErrEmptyInput):
		return "Type a message or attach something first."
	case o.Err != nil:
		return "Something went wrong: " + o.Err.Error()
	}
	return "Something went wrong."
}
