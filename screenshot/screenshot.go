// Package screenshot captures a region of the screen as an image
// attachment.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrCancelled is returned when the user dismissed the selection.
var ErrCancelled = errors.New("screenshot cancelled")

// ErrUnsupported is returned when no capture tool is available.
var ErrUnsupported = errors.New("screenshot: no capture tool available")

func tempPath() string {
	name := fmt.Sprintf("prakriti_screenshot_%d.png", time.Now().UnixNano())
	return filepath.Join(os.TempDir(), name)
}

// captureWith runs an external capture tool that writes to path.
func captureWith(ctx context.Context, name string, args []string, path string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}

	// The tool exits cleanly without a file when the user cancels.
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		os.Remove(path)
		return "", ErrCancelled
	}
	return path, nil
}

// Capture lets the user select a region and returns its PNG bytes. The
// temporary file is removed.
func Capture(ctx context.Context) ([]byte, error) {
	path, err := CaptureInteractive(ctx)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)
	return os.ReadFile(path)
}
