package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.aimuz.me/prakriti/config"
	"go.aimuz.me/prakriti/history"
	"go.aimuz.me/prakriti/internal/app"
	"go.aimuz.me/prakriti/internal/types"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"hello there", command{text: "hello there"}},
		{"  spaced  ", command{text: "spaced"}},
		{"", command{}},
		{"/mic", command{name: "mic"}},
		{"/STOP", command{name: "stop"}},
		{"/image leaf.jpg", command{name: "image", arg: "leaf.jpg"}},
		{"/image leaf.jpg what is this spot?", command{name: "image", arg: "leaf.jpg", text: "what is this spot?"}},
		{"/screenshot  is this blight?", command{name: "screenshot", text: "is this blight?"}},
		{"/quit", command{name: "quit"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := parseLine(tt.line); got != tt.want {
				t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestMeter(t *testing.T) {
	tests := []struct {
		level float64
		bars  int
	}{
		{0, 0},
		{8, 0},
		{16, 1},
		{128, 8},
		{255, 15},
		{400, 16},
		{-3, 0},
	}
	for _, tt := range tests {
		got := meter(tt.level)
		if n := strings.Count(got, "▮"); n != tt.bars {
			t.Errorf("meter(%v) has %d bars, want %d", tt.level, n, tt.bars)
		}
		if n := strings.Count(got, "▮") + strings.Count(got, "·"); n != 16 {
			t.Errorf("meter(%v) width = %d, want 16", tt.level, n)
		}
	}
}

func TestConsoleEmit(t *testing.T) {
	var buf bytes.Buffer
	c := &console{out: &buf}

	c.emit(app.EventMessage, types.Message{Role: types.RoleAssistant, Text: "Namaste"})
	c.emit(app.EventMessage, types.Message{Role: types.RoleUser, Text: "leaf", ImageRef: "file:///tmp/a.jpg"})
	c.emit(app.EventNotice, "Connection lost. Reconnecting…")
	c.emit(app.EventTurnState, types.TurnIdle.String())
	c.emit(app.EventInputLevel, app.InputLevel{Level: 40, Seq: 1})

	want := "Prakriti: Namaste\n" +
		"You: leaf\n    [file:///tmp/a.jpg]\n" +
		"! Connection lost. Reconnecting…\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrintHistory(t *testing.T) {
	store, err := history.Open(history.Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	msgs := []types.Message{
		{Role: types.RoleUser, Text: "मेरी फसल पीली हो रही है", Lang: "hi"},
		{Role: types.RoleAssistant, Text: "Check the nitrogen level.", Lang: "en"},
		{Role: types.RoleUser, Text: "🎤 Audio Message"},
	}
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, m := range msgs {
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Append(ctx, "farmer", m); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	var buf bytes.Buffer
	if err := printHistory(ctx, &buf, store, "farmer"); err != nil {
		t.Fatalf("printHistory() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("printed %d lines, want 3:\n%s", len(lines), buf.String())
	}
	for i, want := range []string{"[hi] You: मेरी", "[en] Prakriti: Check", "[--] You: 🎤"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}

	buf.Reset()
	if err := printHistory(ctx, &buf, store, "nobody"); err != nil {
		t.Fatalf("printHistory() error = %v", err)
	}
	if !strings.Contains(buf.String(), "no messages") {
		t.Errorf("empty history output = %q", buf.String())
	}

	buf.Reset()
	if err := printConversations(ctx, &buf, store); err != nil {
		t.Fatalf("printConversations() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "farmer" {
		t.Errorf("printConversations() = %q, want farmer", got)
	}
}

func TestAddCredential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := addCredential(cfg, config.APICredential{Name: "x", APIKey: "k"}, []string{"tts"}); err == nil {
		t.Error("addCredential() with unknown use succeeded")
	}
	if len(cfg.Credentials) != 0 {
		t.Fatalf("credentials after rejected add = %d, want 0", len(cfg.Credentials))
	}

	id, err := addCredential(cfg, config.APICredential{Name: "openai", APIKey: "sk-abcdefgh12345678"}, []string{"speech", "stt"})
	if err != nil {
		t.Fatalf("addCredential() error = %v", err)
	}

	reloaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Speech.CredentialID != id || reloaded.STT.CredentialID != id {
		t.Errorf("credential ids = %q/%q, want %q", reloaded.Speech.CredentialID, reloaded.STT.CredentialID, id)
	}
	if reloaded.Speech.Engine != "openai" {
		t.Errorf("speech engine = %q, want openai", reloaded.Speech.Engine)
	}
	if err := reloaded.RemoveCredential(id); err == nil {
		t.Error("RemoveCredential() of a credential in use succeeded")
	}

	var buf bytes.Buffer
	printCredentials(&buf, reloaded)
	out := buf.String()
	if !strings.Contains(out, id) || !strings.Contains(out, "speech,stt") {
		t.Errorf("printCredentials() = %q", out)
	}
	if strings.Contains(out, "abcdefgh") || !strings.Contains(out, "sk-a****5678") {
		t.Errorf("printCredentials() does not mask the key: %q", out)
	}
}

func TestPrintCredentialsEmpty(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var buf bytes.Buffer
	printCredentials(&buf, cfg)
	if got := strings.TrimSpace(buf.String()); got != "No credentials configured" {
		t.Errorf("printCredentials() = %q", got)
	}
}
