package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8000 || cfg.Server.Path != "/ws/live-chat" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Audio.Threshold != 8 || cfg.Audio.QuietWindow() != 2*time.Second || cfg.Audio.Encoding != "wav" {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Speech.Rate != 0.9 || cfg.Speech.Engine != "system" {
		t.Errorf("speech = %+v", cfg.Speech)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Host = "farm.example.org"
	cfg.Location = LocationConfig{Mode: "static", Latitude: 18.52, Longitude: 73.85}

	id, err := cfg.AddCredential(APICredential{Name: "OpenAI", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("AddCredential: %v", err)
	}
	cfg.Speech.Engine = "openai"
	cfg.Speech.CredentialID = id
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Server.Host != "farm.example.org" || got.Server.Port != 8000 {
		t.Errorf("server = %+v", got.Server)
	}
	if got.Location.Latitude != 18.52 {
		t.Errorf("location = %+v", got.Location)
	}
	cred := got.GetCredential(id)
	if cred == nil || cred.APIKey != "sk-test" || cred.Type != "openai" {
		t.Errorf("credential = %+v", cred)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"bad port", `{"server":{"port":70000}}`, "server.port"},
		{"bad encoding", `{"audio":{"encoding":"mp3"}}`, "audio.encoding"},
		{"openai without credential", `{"speech":{"engine":"openai","credential_id":"nope"}}`, "speech.credential_id"},
		{"s3 without bucket", `{"storage":{"backend":"s3"}}`, "storage.bucket"},
		{"bad latitude", `{"location":{"mode":"static","latitude":123}}`, "coordinates"},
		{"bad json", `{`, "unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.json), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestCredentials(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := cfg.AddCredential(APICredential{Name: "x"}); err == nil {
		t.Error("credential without key accepted")
	}
	if _, err := cfg.AddCredential(APICredential{Name: "x", APIKey: "k", Type: "openai-compatible"}); err == nil {
		t.Error("openai-compatible credential without base url accepted")
	}

	id, err := cfg.AddCredential(APICredential{Name: "Whisper", APIKey: "sk-1"})
	if err != nil {
		t.Fatal(err)
	}
	cfg.STT.CredentialID = id
	if err := cfg.RemoveCredential(id); err == nil {
		t.Error("removed a credential in use")
	}

	cfg.STT.CredentialID = ""
	if err := cfg.RemoveCredential(id); err != nil {
		t.Errorf("RemoveCredential: %v", err)
	}
	if cfg.GetCredential(id) != nil {
		t.Error("credential still present")
	}
	if err := cfg.RemoveCredential(id); err == nil {
		t.Error("removing a missing credential succeeded")
	}
}
