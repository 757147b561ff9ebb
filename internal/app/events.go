// Package app wires configuration, devices and the live chat into one
// service for the command line front end.
package app

// Event names emitted to the front end.
const (
	EventMessage    = "chat-message"
	EventTurnState  = "turn-state"
	EventNotice     = "notice"
	EventConnection = "connection-state"
	EventInputLevel = "input-level"
)

// InputLevel is a typed event for microphone level updates.
// Fields ordered by size for optimal memory layout.
type InputLevel struct {
	Level     float64 `json:"level"`     // mean spectral energy, 0..255
	Timestamp int64   `json:"timestamp"` // unix millis
	Seq       int     `json:"seq"`
}

// ConnectionStatus is a typed event for live channel transitions.
type ConnectionStatus struct {
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
}
