package server

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"tubechat/core"
	"tubechat/storage"
)

// ChatHandlers serves questions, history and the persona bot.
type ChatHandlers struct {
	assistant Assistant
	chatLog   storage.ChatLog
	opts      *Options
	mu        *sync.RWMutex
	log       *slog.Logger
}

func (h *ChatHandlers) QueryHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		core.WriteError(w, core.Wrap(core.ErrInvalidArgument, "query", "params", "Query text is empty", nil))
		return
	}
	collection := q.Get("collection_name")
	if collection == "" {
		collection = h.opts.DefaultCollection
	}

	h.mu.RLock()
	resp, err := h.assistant.Ask(r.Context(), query, collection)
	h.mu.RUnlock()
	if err != nil {
		h.log.Warn("query failed", "collection", collection, "error", err)
		core.WriteError(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, resp)
}

func (h *ChatHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.chatLog.All(r.Context())
	if err != nil {
		core.WriteError(w, core.Wrap(core.ErrStorage, "history", "read", "", err))
		return
	}
	core.WriteJSON(w, http.StatusOK, core.HistoryResponse{Total: len(records), Records: records})
}

func (h *ChatHandlers) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.assistant.Summary(r.Context())
	if err != nil {
		core.WriteError(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, core.SummaryResponse{Summary: summary})
}

// BotHandler answers as the TubeChat persona. The reply is a bare JSON string.
func (h *ChatHandlers) BotHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		core.WriteError(w, core.Wrap(core.ErrInvalidArgument, "bot", "params", "query is required", nil))
		return
	}
	reply, err := h.assistant.BotReply(r.Context(), query)
	if err != nil {
		core.WriteError(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, reply)
}
