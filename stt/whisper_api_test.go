package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWhisperAPI_Transcribe(t *testing.T) {
	var gotPath, gotModel, gotLang, gotFormat, gotAuth string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotAudio, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" मेरी फसल ","language":"hindi","duration":1.5,
			"segments":[{"text":"मेरी फसल","start":0,"end":1.5}]}`)
	}))
	defer srv.Close()

	w := NewWhisperAPI(WhisperAPIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	res, err := w.Transcribe(context.Background(), make([]float32, 1600), 16000, "hi")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "मेरी फसल" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Segments) != 1 || res.Segments[0].End != 1500*time.Millisecond {
		t.Errorf("Segments = %+v", res.Segments)
	}
	if res.Language != "hindi" || res.Duration != 1.5 {
		t.Errorf("Language = %q, Duration = %v", res.Language, res.Duration)
	}
	if !strings.HasSuffix(gotPath, "/audio/transcriptions") {
		t.Errorf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" || gotModel != "whisper-1" || gotLang != "hi" || gotFormat != "verbose_json" {
		t.Errorf("request auth=%q model=%q language=%q format=%q", gotAuth, gotModel, gotLang, gotFormat)
	}
	if want := 44 + 1600*2; len(gotAudio) != want || string(gotAudio[:4]) != "RIFF" {
		t.Errorf("uploaded %d bytes, want a %d byte WAV", len(gotAudio), want)
	}
}

func TestWhisperAPI_Errors(t *testing.T) {
	if _, err := NewWhisperAPI(WhisperAPIConfig{}).Transcribe(context.Background(), nil, 16000, ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("no key: error = %v, want ErrNotConfigured", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	w := NewWhisperAPI(WhisperAPIConfig{APIKey: "bad", BaseURL: srv.URL})
	if _, err := w.Transcribe(context.Background(), make([]float32, 160), 16000, "auto"); err == nil {
		t.Error("expected API error")
	}
}
