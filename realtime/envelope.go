package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"go.aimuz.me/prakriti/internal/types"
)

const (
	// DefaultPort is the port of the live chat backend.
	DefaultPort = 8000
	// DefaultPath is the live chat endpoint path.
	DefaultPath = "/ws/live-chat"

	// locationPrefix marks a text frame as a location update rather than a
	// user message. The backend consumes it silently.
	locationPrefix = "[SYSTEM_LOCATION_UPDATE]"
)

// Endpoint builds the live chat URL for host. A host given with an http(s)
// or ws(s) scheme keeps its security; a bare host uses ws. A port in host
// is used when port is not positive.
func Endpoint(host string, port int, path string) (string, error) {
	if host == "" {
		return "", errors.New("realtime: empty host")
	}
	if path == "" {
		path = DefaultPath
	}

	scheme := "ws"
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		switch u.Scheme {
		case "https", "wss":
			scheme = "wss"
		}
		host = u.Host
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		host = h
		if port <= 0 {
			port, _ = strconv.Atoi(p)
		}
	}
	if port <= 0 {
		port = DefaultPort
	}

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   path,
	}
	return u.String(), nil
}

// LocationEnvelope builds the envelope reporting pos to the backend.
func LocationEnvelope(pos types.Position) types.Envelope {
	return types.Envelope{
		Kind: types.KindLocation,
		Data: fmt.Sprintf("%s Latitude: %v, Longitude: %v.", locationPrefix, pos.Latitude, pos.Longitude),
	}
}

// frame is the JSON shape of an envelope on the wire.
type frame struct {
	Type     string `json:"type"`
	Data     string `json:"data,omitempty"`
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// EncodeEnvelope serializes env for the wire. Location envelopes travel as
// text frames.
func EncodeEnvelope(env types.Envelope) ([]byte, error) {
	var f frame
	switch env.Kind {
	case types.KindText, types.KindLocation:
		f = frame{Type: string(types.KindText), Data: env.Data}
	case types.KindAudio:
		f = frame{Type: string(types.KindAudio), Data: env.Data, MIMEType: env.MIMEType}
	case types.KindResponse:
		f = frame{Type: string(types.KindResponse), Text: env.Data}
	default:
		return nil, fmt.Errorf("realtime: unknown envelope kind %q", env.Kind)
	}
	return json.Marshal(f)
}

// DecodeEnvelope parses an inbound frame. The payload is read from "text",
// falling back to "data". Unknown kinds decode without error so callers can
// ignore them.
func DecodeEnvelope(data []byte) (types.Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return types.Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if f.Type == "" {
		return types.Envelope{}, errors.New("realtime: envelope without type")
	}

	payload := f.Text
	if payload == "" {
		payload = f.Data
	}
	return types.Envelope{
		Kind:     types.EnvelopeKind(f.Type),
		Data:     payload,
		MIMEType: f.MIMEType,
	}, nil
}
