package stream

import (
	"bufio"
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/studio-concierge/backend/internal/service/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/reply"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/turn"
)

func setup(t *testing.T) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	engine, err := turn.NewEngine(context.Background(),
		persona.NewMemoryStore(persona.Seed()),
		reply.New(rand.New(rand.NewPCG(1, 1))),
		turn.EngineConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEngine err: %v", err)
	}

	hub := events.NewHub()
	chatSvc := chatservice.NewService(engine,
		chatservice.WithListener(hub),
		chatservice.WithSchedulerFactory(func() turn.Scheduler { return turn.ImmediateScheduler{} }))

	r := chi.NewRouter()
	New(chatSvc, hub).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

// nextEvent reads lines until a complete SSE event and returns its name.
func nextEvent(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	var name string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case line == "" && name != "":
			return name
		}
	}
}

func TestStreamDeliversSessionEvents(t *testing.T) {
	srv, chatSvc := setup(t)
	ctx := context.Background()
	session, _ := chatSvc.CreateSession(ctx)

	resp, err := http.Get(srv.URL + "/stream/" + session.ID)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if got := nextEvent(t, reader); got != "snapshot" {
		t.Fatalf("expected snapshot first, got %s", got)
	}

	if _, err := chatSvc.SendMessage(ctx, session.ID, "merhaba"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	want := []string{"message", "state", "typing", "message_replaced", "state"}
	for _, name := range want {
		if got := nextEvent(t, reader); got != name {
			t.Fatalf("expected %s, got %s", name, got)
		}
	}

	if err := chatSvc.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if got := nextEvent(t, reader); got != "closed" {
		t.Fatalf("expected closed, got %s", got)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	srv, _ := setup(t)

	resp, err := http.Get(srv.URL + "/stream/missing")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
