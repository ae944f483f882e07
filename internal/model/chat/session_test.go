package chat

import (
	"testing"
	"time"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
)

func TestNewMessageIDIsMonotonic(t *testing.T) {
	now := time.Now()
	prev := NewMessageID(now)
	for i := 0; i < 100; i++ {
		next := NewMessageID(now)
		if next <= prev {
			t.Fatalf("id %s not greater than %s", next, prev)
		}
		prev = next
	}
}

func TestReplacePlaceholderKeepsPosition(t *testing.T) {
	p := persona.Persona{ID: "web-dev", Name: "Emre"}
	now := time.Now()

	session := Session{}
	session.Messages = append(session.Messages, UserMessage("merhaba", now))
	typing := TypingMessage(p, now)
	session.Messages = append(session.Messages, typing)

	reply := PersonaMessage(p, "Merhaba!", now)
	session.ReplacePlaceholder(typing.ID, reply)

	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(session.Messages))
	}
	if session.Messages[1].ID != reply.ID || session.Messages[1].TypingPlaceholder {
		t.Fatalf("placeholder not replaced: %+v", session.Messages[1])
	}
}

func TestReplacePlaceholderAppendsWhenMissing(t *testing.T) {
	session := Session{}
	reply := PersonaMessage(persona.Persona{ID: "general"}, "hi", time.Now())
	session.ReplacePlaceholder("gone", reply)

	if len(session.Messages) != 1 || session.Messages[0].ID != reply.ID {
		t.Fatalf("expected reply appended, got %+v", session.Messages)
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	session := Session{Context: Context{MentionedTopics: []string{"web"}}}
	session.Messages = []Message{UserMessage("a", time.Now())}

	clone := session.Clone()
	clone.Context.MentionedTopics[0] = "mobil"
	clone.Messages[0].Text = "b"

	if session.Context.MentionedTopics[0] != "web" || session.Messages[0].Text != "a" {
		t.Fatal("clone shares backing arrays with the original")
	}
}
