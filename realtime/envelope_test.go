package realtime

import (
	"testing"

	"go.aimuz.me/prakriti/internal/types"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    int
		path    string
		want    string
		wantErr bool
	}{
		{"bare host", "localhost", 0, "", "ws://localhost:8000/ws/live-chat", false},
		{"explicit port", "10.0.0.7", 9000, "", "ws://10.0.0.7:9000/ws/live-chat", false},
		{"host with port", "farm.local:8080", 0, "", "ws://farm.local:8080/ws/live-chat", false},
		{"https origin", "https://prakriti.example.com", 0, "", "wss://prakriti.example.com:8000/ws/live-chat", false},
		{"http origin with port", "http://127.0.0.1:5173", 8000, "/ws/other", "ws://127.0.0.1:8000/ws/other", false},
		{"empty host", "", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Endpoint(tt.host, tt.port, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		env     types.Envelope
		want    string
		wantErr bool
	}{
		{"text", types.TextEnvelope("hello"), `{"type":"text","data":"hello"}`, false},
		{"audio", types.AudioEnvelope("AAAA", "audio/ogg"), `{"type":"audio","data":"AAAA","mime_type":"audio/ogg"}`, false},
		{"location travels as text", LocationEnvelope(types.Position{Latitude: 1.5, Longitude: -2}),
			`{"type":"text","data":"[SYSTEM_LOCATION_UPDATE] Latitude: 1.5, Longitude: -2."}`, false},
		{"response", types.Envelope{Kind: types.KindResponse, Data: "ok"}, `{"type":"response","text":"ok"}`, false},
		{"unknown", types.Envelope{Kind: "video"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeEnvelope(tt.env)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("EncodeEnvelope() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantKind types.EnvelopeKind
		wantData string
		wantErr  bool
	}{
		{"response text", `{"type":"response","text":"Crop looks healthy"}`, types.KindResponse, "Crop looks healthy", false},
		{"response data fallback", `{"type":"response","data":"Namaste"}`, types.KindResponse, "Namaste", false},
		{"text wins over data", `{"type":"response","text":"a","data":"b"}`, types.KindResponse, "a", false},
		{"unknown kind", `{"type":"status","data":"busy"}`, "status", "busy", false},
		{"missing type", `{"text":"x"}`, "", "", true},
		{"invalid json", `{`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if env.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", env.Kind, tt.wantKind)
			}
			if env.Data != tt.wantData {
				t.Errorf("Data = %q, want %q", env.Data, tt.wantData)
			}
		})
	}
}
