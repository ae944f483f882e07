package chat

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
)

// Message is one entry of the visible conversation. Messages are never edited once
// appended; a typing placeholder is the only entry that is ever replaced.
type Message struct {
	ID                string    `json:"id"`
	Text              string    `json:"text"`
	FromUser          bool      `json:"isFromUser"`
	Timestamp         time.Time `json:"timestamp"`
	PersonaID         string    `json:"personaId,omitempty"`
	PersonaName       string    `json:"personaName,omitempty"`
	PersonaTitle      string    `json:"personaTitle,omitempty"`
	AvatarRef         string    `json:"avatarRef,omitempty"`
	HandoffNotice     bool      `json:"isHandoffNotice,omitempty"`
	TypingPlaceholder bool      `json:"isTypingPlaceholder,omitempty"`
	Confirmation      bool      `json:"isConfirmation,omitempty"`
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a ULID; ids created later in the process sort after earlier ones.
func NewMessageID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}

// UserMessage builds a message typed by the visitor.
func UserMessage(text string, now time.Time) Message {
	return Message{
		ID:        NewMessageID(now),
		Text:      text,
		FromUser:  true,
		Timestamp: now,
	}
}

// PersonaMessage builds a message attributed to p.
func PersonaMessage(p persona.Persona, text string, now time.Time) Message {
	return Message{
		ID:           NewMessageID(now),
		Text:         text,
		Timestamp:    now,
		PersonaID:    p.ID,
		PersonaName:  p.Name,
		PersonaTitle: p.Title,
		AvatarRef:    p.AvatarRef,
	}
}

// HandoffMessage builds the system-style transfer notice shown before a persona switch.
func HandoffMessage(text string, now time.Time) Message {
	return Message{
		ID:            NewMessageID(now),
		Text:          text,
		Timestamp:     now,
		HandoffNotice: true,
	}
}

// TypingMessage builds the placeholder rendered as a typing indicator for p.
func TypingMessage(p persona.Persona, now time.Time) Message {
	msg := PersonaMessage(p, "", now)
	msg.TypingPlaceholder = true
	return msg
}
