package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	chatService "github.com/zhouzirui/studio-concierge/backend/internal/service/chat"
	leadService "github.com/zhouzirui/studio-concierge/backend/internal/service/lead"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/turn"
	"github.com/zhouzirui/studio-concierge/backend/pkg/utils"
)

// DefaultMaxMessageLength 单条消息的默认最大字符数
const DefaultMaxMessageLength = 1000

// Handler 会话服务的HTTP处理器
type Handler struct {
	chatSvc   *chatService.Service
	leadSvc   *leadService.Service
	maxLength int
}

// New 创建会话处理器
func New(chatSvc *chatService.Service, leadSvc *leadService.Service, maxLength int) *Handler {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &Handler{
		chatSvc:   chatSvc,
		leadSvc:   leadSvc,
		maxLength: maxLength,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Post("/messages", h.handleSendMessage)
		r.Post("/lead", h.handleSubmitLead)
		r.Post("/lead/dismiss", h.handleDismissLead)
	})
}

// sessionResponse 会话快照与当前人设
type sessionResponse struct {
	Session chat.Session    `json:"session"`
	Persona persona.Persona `json:"persona"`
}

// handleCreateSession 创建会话，默认人设发送问候
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	o, err := h.chatSvc.Get(r.Context(), session.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{Session: session, Persona: o.ActivePersona()})
}

// handleGetSession 返回会话快照
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionResponse{Session: o.Snapshot(), Persona: o.ActivePersona()})
}

// handleDeleteSession 关闭挂件时放弃会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage 执行一个对话轮次
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if utf8.RuneCountInString(payload.Text) > h.maxLength {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "message too long")
		return
	}

	result, err := h.chatSvc.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, result)
}

// handleSubmitLead 提交线索表单
func (h *Handler) handleSubmitLead(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req leadService.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.leadSvc.Submit(r.Context(), o, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"message": msg})
}

// handleDismissLead 关闭线索表单但不提交
func (h *Handler) handleDismissLead(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.leadSvc.Dismiss(o)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*turn.Orchestrator, bool) {
	o, err := h.chatSvc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return o, true
}

// respondServiceError 将服务层错误映射为HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	var validation *leadService.ValidationError

	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, turn.ErrSessionClosed):
		utils.RespondError(w, http.StatusGone, "session closed")
	case errors.Is(err, turn.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, turn.ErrTurnInProgress):
		utils.RespondError(w, http.StatusConflict, "reply in progress")
	case errors.As(err, &validation):
		utils.RespondError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, leadService.ErrAlreadySubmitted):
		utils.RespondError(w, http.StatusConflict, "lead already submitted")
	case errors.Is(err, leadService.ErrPending):
		utils.RespondError(w, http.StatusConflict, "lead submission in progress")
	case errors.Is(err, leadService.ErrSubmitFailed):
		utils.RespondNotice(w, http.StatusBadGateway, "lead submission failed", leadService.FailureNotice())
	case errors.Is(err, leadService.ErrCollaboratorDisabled):
		utils.RespondError(w, http.StatusServiceUnavailable, "lead capture unavailable")
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
