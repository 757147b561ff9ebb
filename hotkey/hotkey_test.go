package hotkey

import (
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		want    []string
		wantErr bool
	}{
		{"ordered", []string{"ctrl", "shift", "space"}, []string{"ctrl", "shift", "space"}, false},
		{"reordered and aliased", []string{"Space", "Shift", "Control"}, []string{"ctrl", "shift", "space"}, false},
		{"mac names", []string{"command", "option", "r"}, []string{"alt", "cmd", "r"}, false},
		{"duplicate modifier", []string{"ctrl", "ctrl", "k"}, []string{"ctrl", "k"}, false},
		{"blank entries", []string{" ", "alt", "", "m"}, []string{"alt", "m"}, false},
		{"modifiers only", []string{"ctrl", "shift"}, nil, true},
		{"two keys", []string{"ctrl", "a", "b"}, nil, true},
		{"empty", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.keys)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.keys, err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Normalize(%q) = %q, want %q", tt.keys, got, tt.want)
			}
		})
	}
}

func TestNewHotkeyManager_Defaults(t *testing.T) {
	m, err := NewHotkeyManager(nil, func() {})
	if err != nil {
		t.Fatalf("NewHotkeyManager() error = %v", err)
	}
	if got := m.Keys(); !slices.Equal(got, DefaultKeys) {
		t.Errorf("Keys() = %q, want %q", got, DefaultKeys)
	}

	if _, err := NewHotkeyManager([]string{"shift"}, func() {}); err == nil {
		t.Error("NewHotkeyManager() with modifiers only succeeded")
	}
}
