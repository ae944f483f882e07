package health

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/studio-concierge/backend/pkg/utils"
)

// SessionCounter reports live sessions.
type SessionCounter interface {
	Count() int
}

// Handler 健康检查
type Handler struct {
	sessions SessionCounter
	started  time.Time
}

// New 创建健康检查处理器
func New(sessions SessionCounter) *Handler {
	return &Handler{sessions: sessions, started: time.Now()}
}

// RegisterRoutes 注册健康检查路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Count(),
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}
