package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gfranco93/cmirror/internal/store"
	"go.uber.org/zap"
)

// ChatsResponse is the chat list read path used by the dashboard UI.
type ChatsResponse struct {
	Chats []store.Chat `json:"chats"`
}

// MessagesResponse is one keyset page of a chat's messages.
type MessagesResponse struct {
	Messages []store.Message `json:"messages"`
}

func (a *API) handleListChats(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	chats, err := a.db.ListChats(limit, offset)
	if err != nil {
		a.logger.Error("list chats", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	a.respondJSON(w, http.StatusOK, ChatsResponse{Chats: chats})
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	chat, err := a.db.GetChat(chatID)
	if err != nil {
		a.logger.Error("get chat", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	if chat == nil {
		a.respondError(w, http.StatusNotFound, "chat not found")
		return
	}

	before := int64(queryInt(r, "before", 0))
	limit := queryInt(r, "limit", 50)

	msgs, err := a.db.ListMessages(chatID, before, limit)
	if err != nil {
		a.logger.Error("list messages", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	a.respondJSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
