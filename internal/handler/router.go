package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/studio-concierge/backend/internal/handler/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/handler/health"
	"github.com/zhouzirui/studio-concierge/backend/internal/handler/persona"
	"github.com/zhouzirui/studio-concierge/backend/internal/handler/stream"
	"github.com/zhouzirui/studio-concierge/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/studio-concierge/backend/internal/middleware"
	personaModel "github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	chatService "github.com/zhouzirui/studio-concierge/backend/internal/service/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	leadService "github.com/zhouzirui/studio-concierge/backend/internal/service/lead"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, leadSvc *leadService.Service, hub *events.Hub, maxMessageLength int) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	health.New(chatSvc).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		persona.New(personas).RegisterRoutes(api)
		chat.New(chatSvc, leadSvc, maxMessageLength).RegisterRoutes(api)
		stream.New(chatSvc, hub).RegisterRoutes(api)
		ws.New(chatSvc, leadSvc, hub, maxMessageLength).RegisterRoutes(api)
	})

	return r
}
