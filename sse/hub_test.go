package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/intentflow/component"
)

func TestClient_SendDropsWhenFull(t *testing.T) {
	client := NewClient("execution:abc:1", WithUserID("u-1"))
	for range DefaultClientBuffer {
		if !client.Send(Frame{Data: []byte("x")}) {
			t.Fatal("send failed before buffer was full")
		}
	}
	if client.Send(Frame{Data: []byte("overflow")}) {
		t.Error("expected send to fail when buffer is full")
	}
	if client.UserID() != "u-1" {
		t.Errorf("UserID = %q", client.UserID())
	}
}

func TestHub_BroadcastMatchesPattern(t *testing.T) {
	hub := startHub(t)
	a1 := NewClient("execution:a:1")
	a2 := NewClient("execution:a:2")
	b1 := NewClient("execution:b:1")
	for _, c := range []*Client{a1, a2, b1, NewClient("dashboard")} {
		hub.Register(c)
	}
	waitForClients(t, hub, 4)
	if n := hub.ExecutionCount(); n != 2 {
		t.Errorf("ExecutionCount = %d, want 2", n)
	}

	hub.Broadcast("execution:a:*", Frame{Event: "node", Data: []byte(`{"node_id":"x"}`)})

	for _, c := range []*Client{a1, a2} {
		select {
		case f := <-c.Events():
			if f.Event != "node" || string(f.Data) != `{"node_id":"x"}` {
				t.Errorf("%s got %+v", c.ID(), f)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s received nothing", c.ID())
		}
	}
	hub.Broadcast("execution:none:*", Frame{})
	select {
	case f := <-b1.Events():
		t.Errorf("b1 received %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	hub := startHub(t)
	c := NewClient("execution:a:1")
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, open := <-c.Events():
		if open {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d", n)
	}
}

func TestHub_StopUnblocksCallers(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	c := NewClient("x")
	hub.Register(c)
	hub.Stop()
	hub.Stop()

	if hub.Register(NewClient("y")) {
		t.Error("Register succeeded on a stopped hub")
	}
	hub.Unregister(c)
	hub.Broadcast("*", Frame{})
}

func TestServeSSE_StreamsUntilFinal(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(hub, w, r, "execution:abc:1")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	if first := <-lines; first != "event: connected" {
		t.Fatalf("first line = %q", first)
	}
	waitForClients(t, hub, 1)
	hub.Broadcast("execution:abc:*", Frame{Event: "node", ID: "7", Data: []byte("a\nb")})
	hub.Broadcast("execution:abc:*", Frame{Event: "execution", Data: []byte("done"), Final: true})

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	stream := strings.Join(got, "\n")
	for _, want := range []string{"event: node\nid: 7\ndata: a\ndata: b", "event: execution\ndata: done"} {
		if !strings.Contains(stream, want) {
			t.Errorf("stream missing %q:\n%s", want, stream)
		}
	}
	waitForClients(t, hub, 0)
}

func TestComponent_Lifecycle(t *testing.T) {
	c := NewComponent("/v1/executions/:id/events", nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != component.StatusHealthy || h.Message != "0 clients on 0 executions" {
		t.Errorf("Health = %+v", h)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if d := c.Describe(); d.Type != "sse" {
		t.Errorf("Describe = %+v", d)
	}
}

// --- test helpers ---

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
