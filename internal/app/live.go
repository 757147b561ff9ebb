package app

import (
	"log/slog"
	"sync"

	"go.aimuz.me/prakriti/internal/types"
)

// ConnectionWatch tracks the live channel state for the front end.
type ConnectionWatch struct {
	mu       sync.RWMutex
	state    types.ConnState
	attempts func() int
	emit     func(name string, data any)
	wasOpen  bool
}

// NewConnectionWatch creates a watch. attempts reports the dial count of
// the underlying connection and may be nil.
func NewConnectionWatch(emit func(name string, data any), attempts func() int) *ConnectionWatch {
	return &ConnectionWatch{state: types.ConnConnecting, emit: emit, attempts: attempts}
}

// Update records a transition and forwards it. A drop after the channel
// was open is logged once per drop.
func (cw *ConnectionWatch) Update(s types.ConnState) {
	cw.mu.Lock()
	dropped := cw.wasOpen && s == types.ConnClosed
	cw.state = s
	if s == types.ConnOpen {
		cw.wasOpen = true
	} else if dropped {
		cw.wasOpen = false
	}
	cw.mu.Unlock()

	if dropped {
		slog.Warn("live chat connection lost")
	}
	cw.emit(EventConnection, cw.Status())
}

// Status returns the current status, safe for concurrent access.
func (cw *ConnectionWatch) Status() ConnectionStatus {
	cw.mu.RLock()
	defer cw.mu.RUnlock()

	st := ConnectionStatus{State: cw.state.String()}
	if cw.attempts != nil {
		st.Attempts = cw.attempts()
	}
	return st
}
