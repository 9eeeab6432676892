package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/intentflow/logger"
)

// KeepAliveInterval is the gap between keep-alive comments. It stays under
// common proxy idle timeouts.
var KeepAliveInterval = 30 * time.Second

// ConnectedEvent is the first frame of every stream.
type ConnectedEvent struct {
	ClientID string            `json:"client_id"`
	UserID   string            `json:"user_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ServeSSE registers a client with hub and streams its frames to w until
// the request ends, a Final frame is written, or the hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts ...ClientOption) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	log := hub.log.WithFields(logger.Fields("client_id", clientID))

	// Streams outlive the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Could not disable write deadline", logger.Fields("error", err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	client := NewClient(clientID, opts...)
	if !hub.Register(client) {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	connected, _ := json.Marshal(ConnectedEvent{ClientID: clientID, UserID: client.UserID(), Metadata: client.Metadata()})
	writeFrame(w, Frame{Event: EventTypeConnected, Data: connected})
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("Client disconnected")
			return
		case f, ok := <-client.Events():
			if !ok {
				return
			}
			writeFrame(w, f)
			flusher.Flush()
			if f.Final {
				return
			}
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

// writeFrame renders f in the text/event-stream format. Multi-line data
// becomes several data lines.
func writeFrame(w http.ResponseWriter, f Frame) {
	if f.Event != "" {
		fmt.Fprintf(w, "event: %s\n", f.Event)
	}
	if f.ID != "" {
		fmt.Fprintf(w, "id: %s\n", f.ID)
	}
	for _, line := range strings.Split(string(f.Data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
