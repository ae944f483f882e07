package events

import (
	"sync"
	"time"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
)

// Type 事件类型
type Type string

const (
	TypeMessage         Type = "message"
	TypeMessageReplaced Type = "message_replaced"
	TypeTyping          Type = "typing"
	TypeHandoff         Type = "handoff"
	TypeState           Type = "state"
	TypeLeadForm        Type = "lead_form"
	TypeNotice          Type = "notice"
)

// Event 会话内发生的可见变化，推送给 SSE / WebSocket 订阅者
type Event struct {
	Type       Type          `json:"type"`
	SessionID  string        `json:"sessionId"`
	Message    *chat.Message `json:"message,omitempty"`
	ReplacesID string        `json:"replacesId,omitempty"`
	PersonaID  string        `json:"personaId,omitempty"`
	State      chat.State    `json:"state,omitempty"`
	Visible    *bool         `json:"visible,omitempty"`
	Notice     string        `json:"notice,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Listener 接收会话事件
type Listener interface {
	Publish(Event)
}

// Discard 丢弃所有事件
var Discard Listener = discard{}

type discard struct{}

func (discard) Publish(Event) {}

const subscriberBuffer = 32

// Hub 按会话管理事件订阅者
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
}

// NewHub 创建事件中心
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[int]chan Event),
	}
}

// Subscribe 订阅会话事件，返回事件通道与取消函数
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan Event, subscriberBuffer)
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan Event)
	}
	h.subs[sessionID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() { h.remove(sessionID, id) })
	}
	return ch, cancel
}

// Publish 向会话的所有订阅者广播事件。慢订阅者的事件会被丢弃，不阻塞会话状态机。
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// CloseSession 关闭会话的所有订阅
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[sessionID] {
		close(ch)
		delete(h.subs[sessionID], id)
	}
	delete(h.subs, sessionID)
}

// Subscribers 返回会话当前订阅者数量
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) remove(sessionID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[sessionID][id]; ok {
		close(ch)
		delete(h.subs[sessionID], id)
	}
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}
