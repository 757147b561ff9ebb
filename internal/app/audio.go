package app

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
)

// LevelForwarder streams microphone levels to the front end with a
// sequence number per recording.
type LevelForwarder struct {
	mu    sync.Mutex
	emit  func(name string, data any)
	clock clockwork.Clock
	seq   int
}

// NewLevelForwarder creates a forwarder emitting through emit.
func NewLevelForwarder(emit func(name string, data any), clock clockwork.Clock) *LevelForwarder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LevelForwarder{emit: emit, clock: clock}
}

// Forward emits one level. It runs on the recorder's frame loop.
func (lf *LevelForwarder) Forward(level float64) {
	lf.mu.Lock()
	lf.seq++
	seq := lf.seq
	lf.mu.Unlock()

	lf.emit(EventInputLevel, InputLevel{
		Level:     level,
		Timestamp: lf.clock.Now().UnixMilli(),
		Seq:       seq,
	})

	if seq%100 == 0 {
		slog.Debug("streamed input levels", "count", seq, "level", level)
	}
}

// Reset restarts the sequence for a new recording.
func (lf *LevelForwarder) Reset() {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.seq = 0
}

