package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openlot/openlot/core/internal/api/respond"
	"github.com/openlot/openlot/core/internal/chat"
	"github.com/openlot/openlot/core/internal/services"
)

// ChatHandler is the HTTP transport for the conversational engine.
type ChatHandler struct {
	svc *services.ChatService
}

func NewChatHandler(svc *services.ChatService) *ChatHandler { return &ChatHandler{svc: svc} }

// SendMessage POST /api/chat/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string  `json:"conversationId"`
		UserID         *string `json:"userId"`
		Text           string  `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	res, err := h.svc.SendMessage(r.Context(), chat.SendMessageRequest{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Text:           req.Text,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// ListConversations GET /api/chat/conversations?userId=&limit=
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respond.WriteBadRequest(w, "userId is required")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		respond.WriteBadRequest(w, "invalid limit")
		return
	}
	out, err := h.svc.ListConversations(r.Context(), userID, limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"conversations": out, "count": len(out)})
}

// ListMessages GET /api/chat/conversations/{conversationId}/messages?limit=
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.WriteBadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	out, err := h.svc.ListMessages(r.Context(), mux.Vars(r)["conversationId"], limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": out, "count": len(out)})
}

// DeleteConversation DELETE /api/chat/conversations/{conversationId}
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteConversation(r.Context(), mux.Vars(r)["conversationId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
