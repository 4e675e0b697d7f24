package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webhelpdesk/helpdesk/internal/controller"
	"github.com/webhelpdesk/helpdesk/internal/handler/chat"
	"github.com/webhelpdesk/helpdesk/internal/handler/qr"
	"github.com/webhelpdesk/helpdesk/internal/handler/session"
	"github.com/webhelpdesk/helpdesk/internal/handler/speech"
	middlewarePkg "github.com/webhelpdesk/helpdesk/internal/middleware"
	"github.com/webhelpdesk/helpdesk/internal/observability"
	chatService "github.com/webhelpdesk/helpdesk/internal/service/chat"
	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
	"github.com/webhelpdesk/helpdesk/pkg/utils"
	"github.com/webhelpdesk/helpdesk/web"
)

// Deps 路由依赖的服务。
type Deps struct {
	Chat           *chatService.Service
	Asker          controller.Asker
	Speech         *speechService.Service // 未配置凭证时为 nil
	Voice          session.VoiceOptions
	Locale         string
	MetricsEnabled bool
	PublicURL      string // 二维码地址，为空时按 ListenAddr 推断
	ListenAddr     string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(observability.Component("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var backend session.SpeechBackend
	if deps.Speech != nil && deps.Speech.Available() {
		backend = deps.Speech
	}

	wsHandler := session.NewWebSocketHandler(deps.Chat, deps.Asker, backend, deps.Voice, observability.Component("session"))
	chatHandler := chat.New(deps.Chat)
	qrHandler := qr.New(deps.PublicURL, deps.ListenAddr, observability.Component("qr"))

	r.Get("/", web.Index)
	wsHandler.RegisterWebSocketRoutes(r)
	qrHandler.RegisterRoutes(r)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Chat.Count(),
			"speech":   backend != nil,
		})
	})

	if deps.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)

		if backend != nil {
			speechHandler := speech.New(backend, deps.Locale, observability.Component("speech-http"))
			speechHandler.RegisterRoutes(api)
		}
	})

	return r
}
