package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/auth"
	"go.uber.org/zap"
)

func collectEvents(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timeout collecting stream events")
		}
	}
}

func TestStreamChunksThenComplete(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"type\":\"streamChunk\",\"content\":\"Hel\"}\n")
		fmt.Fprintf(w, "data: {\"type\":\"streamChunk\",\"content\":\"lo\"}\n")
		fmt.Fprintf(w, "data: {\"type\":\"streamComplete\",\"fullResponse\":\"Hello there\",\"contextFound\":true}\n")
	})
	c := testClient(t, handler, "tok", nil)

	events := collectEvents(t, c.Stream(context.Background(), "s1", "hi"))
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Type != EventChunk || events[0].Content != "Hel" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Type != EventChunk || events[1].Content != "lo" {
		t.Errorf("events[1] = %+v", events[1])
	}
	last := events[2]
	if last.Type != EventComplete || last.FullText != "Hello there" || !last.Meta.ContextFound {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestStreamMalformedRecordsSkipped(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: {not json}\n")
		fmt.Fprintf(w, ": keep-alive comment\n")
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "data: {\"type\":\"streamChunk\",\"content\":\"ok\"}\n")
		fmt.Fprintf(w, "data: {\"type\":\"streamComplete\",\"fullResponse\":\"ok\"}\n")
	})
	c := testClient(t, handler, "tok", nil)

	events := collectEvents(t, c.Stream(context.Background(), "s1", "hi"))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (malformed records are non-fatal): %+v", len(events), events)
	}
	if events[0].Content != "ok" || events[1].Type != EventComplete {
		t.Errorf("events = %+v", events)
	}
}

func TestStreamBackendErrorEvent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: {\"type\":\"error\",\"message\":\"model overloaded\"}\n")
	})
	c := testClient(t, handler, "tok", nil)

	events := collectEvents(t, c.Stream(context.Background(), "s1", "hi"))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != EventError || ev.ErrMessage != "model overloaded" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Transport {
		t.Error("backend-reported error marked as transport failure")
	}
}

func TestStreamTruncatedStreamIsTransportError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: {\"type\":\"streamChunk\",\"content\":\"partial\"}\n")
		// Connection closes without a terminal frame.
	})
	c := testClient(t, handler, "tok", nil)

	events := collectEvents(t, c.Stream(context.Background(), "s1", "hi"))
	last := events[len(events)-1]
	if last.Type != EventError || !last.Transport {
		t.Errorf("terminal event = %+v, want transport error", last)
	}
}

func TestStreamFallsBackToNonStreamingSend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rfp-gpt/chats/s1/messages/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	})
	mux.HandleFunc("/api/rfp-gpt/chats/s1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body sendBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode send body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ChatReply{
			Response:     "fallback reply",
			ContextFound: true,
			Sources:      []SourceMeta{{ID: "d1", Title: "Doc"}},
		})
	})
	c := testClient(t, mux, "tok", nil)

	events := collectEvents(t, c.Stream(context.Background(), "s1", "hi"))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 terminal complete: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Type != EventComplete || ev.FullText != "fallback reply" {
		t.Errorf("event = %+v, want completion from fallback", ev)
	}
	if len(ev.Meta.Sources) != 1 {
		t.Errorf("sources = %+v", ev.Meta.Sources)
	}
}

func TestStreamConnectFailureIsTransportError(t *testing.T) {
	refresher := auth.RefresherFunc(func(context.Context) (string, error) { return "tok", nil })
	c := New("http://127.0.0.1:1", auth.NewHolder("tok"), refresher, zap.NewNop())

	events := collectEvents(t, c.Stream(context.Background(), "s1", "hi"))
	if len(events) != 1 || events[0].Type != EventError || !events[0].Transport {
		t.Errorf("events = %+v, want single transport error", events)
	}
}
