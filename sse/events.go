package sse

// Event names written on the "event:" line.
const (
	EventTypeConnected = "connected"
	EventTypeMessage   = "message"
	EventTypeError     = "error"
)

// Frame is one SSE event. A Final frame is written and then the stream is
// closed.
type Frame struct {
	Event string
	ID    string
	Data  []byte
	Final bool
}

// Broadcaster sends frames to every client whose id matches pattern.
type Broadcaster interface {
	Broadcast(pattern string, f Frame)
}
