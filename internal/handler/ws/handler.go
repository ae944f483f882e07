package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatService "github.com/zhouzirui/studio-concierge/backend/internal/service/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	leadService "github.com/zhouzirui/studio-concierge/backend/internal/service/lead"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/turn"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second

	defaultMaxMessageLength = 1000
	// 帧头与JSON转义的余量
	frameOverhead = 1024
)

// Handler WebSocket 会话处理器：推送会话事件，接收用户消息
type Handler struct {
	chatSvc  *chatService.Service
	leadSvc  *leadService.Service
	hub       *events.Hub
	maxLength int
	upgrader  websocket.Upgrader
}

// New 创建WebSocket处理器，maxLength 为单条消息的最大字符数
func New(chatSvc *chatService.Service, leadSvc *leadService.Service, hub *events.Hub, maxLength int) *Handler {
	if maxLength <= 0 {
		maxLength = defaultMaxMessageLength
	}
	return &Handler{
		chatSvc:   chatSvc,
		leadSvc:   leadSvc,
		hub:       hub,
		maxLength: maxLength,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 用户文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	o, err := h.chatSvc.Get(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	logger := slog.With("session_id", sessionID)
	logger.Info("websocket connected")
	defer logger.Info("websocket disconnected")

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	eventsCh, unsubscribe := h.hub.Subscribe(sessionID)
	defer unsubscribe()

	replies := make(chan outgoingMessage, 8)
	replies <- outgoingMessage{Type: "snapshot", SessionID: sessionID, Data: o.Snapshot()}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		// 写循环结束时关闭连接以解除读阻塞
		defer conn.Close()
		h.writeLoop(ctx, conn, sessionID, eventsCh, replies)
	}()
	defer wg.Wait()

	conn.SetReadLimit(int64(h.maxLength)*utf8.UTFMax*2 + frameOverhead)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", "error", err)
			}
			cancel()
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if reply, ok := h.handleMessage(ctx, sessionID, &msg); ok {
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleMessage 处理入站消息，需要回复时返回 true
func (h *Handler) handleMessage(ctx context.Context, sessionID string, msg *inboundMessage) (outgoingMessage, bool) {
	switch msg.Type {
	case "message":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			return errorMessage("invalid message payload"), true
		}
		if utf8.RuneCountInString(text.Text) > h.maxLength {
			return errorMessage("message too long"), true
		}
		result, err := h.chatSvc.SendMessage(ctx, sessionID, text.Text)
		if err != nil {
			return errorMessage(describe(err)), true
		}
		return outgoingMessage{Type: "turn", SessionID: sessionID, Data: result}, true
	case "dismiss_lead":
		o, err := h.chatSvc.Get(ctx, sessionID)
		if err != nil {
			return errorMessage(describe(err)), true
		}
		h.leadSvc.Dismiss(o)
		return outgoingMessage{}, false
	case "ping":
		return outgoingMessage{Type: "pong", SessionID: sessionID}, true
	default:
		return errorMessage("unsupported message type: " + msg.Type), true
	}
}

// writeLoop 是连接上唯一的写入者
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, eventsCh <-chan events.Event, replies <-chan outgoingMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventsCh:
			if !ok {
				_ = write(conn, outgoingMessage{Type: "closed", SessionID: sessionID})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := write(conn, outgoingMessage{Type: string(ev.Type), SessionID: sessionID, Data: ev}); err != nil {
				return
			}
		case reply := <-replies:
			if err := write(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, msg outgoingMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("websocket write failed", "type", msg.Type, "error", err)
		return err
	}
	return nil
}

func errorMessage(message string) outgoingMessage {
	return outgoingMessage{Type: "error", Data: map[string]string{"message": message}}
}

func describe(err error) string {
	switch {
	case errors.Is(err, turn.ErrTurnInProgress):
		return "reply in progress"
	case errors.Is(err, turn.ErrEmptyMessage):
		return "text is required"
	case errors.Is(err, chatService.ErrSessionNotFound), errors.Is(err, turn.ErrSessionClosed):
		return "session not found"
	default:
		return err.Error()
	}
}
