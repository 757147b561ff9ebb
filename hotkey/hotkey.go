// Package hotkey provides a global push-to-talk shortcut.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// DefaultKeys toggles recording when no shortcut is configured.
var DefaultKeys = []string{"ctrl", "shift", "space"}

var modifiers = []string{"ctrl", "shift", "alt", "cmd"}

// HotkeyManager listens for one global key combination.
type HotkeyManager struct {
	keys     []string
	onToggle func()

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewHotkeyManager creates a manager calling onToggle for every press of
// keys. Empty keys select DefaultKeys.
func NewHotkeyManager(keys []string, onToggle func()) (*HotkeyManager, error) {
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	norm, err := Normalize(keys)
	if err != nil {
		return nil, err
	}
	return &HotkeyManager{keys: norm, onToggle: onToggle}, nil
}

// Keys returns the normalized combination.
func (m *HotkeyManager) Keys() []string {
	return slices.Clone(m.keys)
}

// Start installs the global hook. It needs accessibility permission on
// macOS and an X11 session on Linux.
func (m *HotkeyManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("hotkey: already running")
	}

	hook.Register(hook.KeyDown, m.keys, func(hook.Event) {
		slog.Debug("push-to-talk pressed", "keys", strings.Join(m.keys, "+"))
		m.onToggle()
	})
	evChan := hook.Start()
	m.done = make(chan struct{})
	m.running = true

	go func(done chan struct{}) {
		<-hook.Process(evChan)
		close(done)
	}(m.done)

	slog.Info("push-to-talk registered", "keys", strings.Join(m.keys, "+"))
	return nil
}

// Stop removes the hook and waits for the event loop to exit.
func (m *HotkeyManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	done := m.done
	m.mu.Unlock()

	hook.End()
	<-done
}

// Normalize lowercases keys, puts modifiers first in a fixed order and
// rejects combinations without exactly one non-modifier key.
func Normalize(keys []string) ([]string, error) {
	var mods, rest []string
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		switch k {
		case "":
			continue
		case "control":
			k = "ctrl"
		case "option":
			k = "alt"
		case "command", "meta", "super":
			k = "cmd"
		}
		if slices.Contains(modifiers, k) {
			if !slices.Contains(mods, k) {
				mods = append(mods, k)
			}
			continue
		}
		rest = append(rest, k)
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("hotkey: want exactly one non-modifier key, got %q", keys)
	}

	slices.SortFunc(mods, func(a, b string) int {
		return slices.Index(modifiers, a) - slices.Index(modifiers, b)
	})
	return append(mods, rest[0]), nil
}
