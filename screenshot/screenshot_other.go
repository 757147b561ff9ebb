//go:build !darwin

package screenshot

import (
	"context"
	"os/exec"
)

// HasPermission reports whether a capture tool is installed.
func HasPermission() bool {
	_, _, ok := findTool(tempPath())
	return ok
}

// RequestPermission is a no-op outside macOS.
func RequestPermission() {}

// CaptureInteractive runs the first installed region-capture tool and
// returns the path of the saved image.
func CaptureInteractive(ctx context.Context) (string, error) {
	path := tempPath()
	name, args, ok := findTool(path)
	if !ok {
		return "", ErrUnsupported
	}
	return captureWith(ctx, name, args, path)
}

// tools lists region-capture programs in order of preference.
var tools = []struct {
	name string
	args func(path string) []string
}{
	{"gnome-screenshot", func(p string) []string { return []string{"-a", "-f", p} }},
	{"spectacle", func(p string) []string { return []string{"-r", "-b", "-n", "-o", p} }},
	{"scrot", func(p string) []string { return []string{"-s", "-o", p} }},
	{"import", func(p string) []string { return []string{p} }},
}

func findTool(path string) (string, []string, bool) {
	for _, t := range tools {
		if bin, err := exec.LookPath(t.name); err == nil {
			return bin, t.args(path), true
		}
	}
	return "", nil, false
}
