package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/webhelpdesk/helpdesk/internal/service/chat"
	"github.com/webhelpdesk/helpdesk/pkg/utils"
)

// Handler 会话查询的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Get("/sessions/{sessionID}/messages", h.handleListMessages)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"id":        session.ID,
		"createdAt": session.CreatedAt,
		"messages":  session.Transcript().Len(),
	})
}

// handleListMessages 返回会话当前的消息记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
	})
}

func respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
