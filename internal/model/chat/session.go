package chat

import "time"

// State is the turn state of a session's input gate.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
)

// Session captures one visitor's in-memory conversation. It is never persisted.
type Session struct {
	ID              string    `json:"id"`
	ActivePersonaID string    `json:"activePersonaId"`
	Messages        []Message `json:"messages"`
	Context         Context   `json:"context"`
	Turns           int       `json:"turns"`
	State           State     `json:"state"`
	LeadFormShown   bool      `json:"leadFormShown"`
	LeadSubmitted   bool      `json:"leadSubmitted"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s Session) Clone() Session {
	s.Messages = append([]Message(nil), s.Messages...)
	s.Context = s.Context.Clone()
	return s
}

// ReplacePlaceholder swaps the typing placeholder with id for msg. It appends msg
// when the placeholder is gone.
func (s *Session) ReplacePlaceholder(id string, msg Message) {
	for i := range s.Messages {
		if s.Messages[i].ID == id && s.Messages[i].TypingPlaceholder {
			s.Messages[i] = msg
			return
		}
	}
	s.Messages = append(s.Messages, msg)
}
