package stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/studio-concierge/backend/internal/service/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	"github.com/zhouzirui/studio-concierge/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler streams session events to the widget via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	hub       *events.Hub
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, hub *events.Hub) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		hub:       hub,
		heartbeat: defaultHeartbeat,
	}
}

// RegisterRoutes registers the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// handleStream sends a snapshot first and then every event of the session until the
// client disconnects or the session is deleted.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	o, err := h.chatSvc.Get(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	logger := slog.With("session_id", sessionID)
	logger.Info("sse stream opened")
	defer logger.Info("sse stream closed")

	if err := utils.SendSSEEvent(w, flusher, "snapshot", o.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
