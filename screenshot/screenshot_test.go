//go:build !windows

package screenshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCaptureWith(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		script  string
		wantErr error
	}{
		{"saved", "printf png > %s", nil},
		{"cancelled", "true %s", ErrCancelled},
		{"empty file", ": > %s", ErrCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".png")
			script := strings.ReplaceAll(tt.script, "%s", path)

			got, err := captureWith(context.Background(), "sh", []string{"-c", script}, path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("captureWith() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
					t.Error("partial file left behind")
				}
				return
			}
			if got != path {
				t.Errorf("path = %q, want %q", got, path)
			}
		})
	}

	if _, err := captureWith(context.Background(), "sh", []string{"-c", "exit 3"}, filepath.Join(dir, "x.png")); err == nil || errors.Is(err, ErrCancelled) {
		t.Errorf("failing tool error = %v, want a command error", err)
	}
}

func TestTempPath(t *testing.T) {
	p := tempPath()
	if filepath.Dir(p) != filepath.Clean(os.TempDir()) || !strings.HasSuffix(p, ".png") {
		t.Errorf("tempPath() = %q", p)
	}
}
