package server

import (
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"tubechat/captions"
	"tubechat/core"
	"tubechat/storage"
	"tubechat/utils"
)

// MonitoringHandlers covers liveness, health and session teardown.
type MonitoringHandlers struct {
	vectors VectorClearer
	chatLog storage.ChatLog
	opts    *Options
	mu      *sync.RWMutex
	started time.Time
	log     *slog.Logger
}

func (h *MonitoringHandlers) RootHandler(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "YouTube Captions API is running",
	})
}

// HealthCheckHandler reports backends, chat log size and runtime stats.
func (h *MonitoringHandlers) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	services := map[string]string{}
	for name, backend := range h.opts.Backends {
		services[name] = backend
	}

	records := 0
	if h.chatLog == nil {
		status = "degraded"
		services["chat_log"] = "inactive"
	} else if all, err := h.chatLog.All(r.Context()); err != nil {
		status = "degraded"
		services["chat_log"] = "error: " + err.Error()
	} else {
		records = len(all)
	}
	if h.vectors == nil {
		status = "degraded"
		services["vector_store"] = "inactive"
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	body := map[string]any{
		"status":       status,
		"timestamp":    time.Now().Unix(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"services":     services,
		"chat_records": records,
		"runtime": map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"heap_alloc": utils.FormatBytes(m.HeapAlloc),
			"num_gc":     m.NumGC,
			"go_version": runtime.Version(),
		},
	}
	if h.opts.CacheMetrics != nil {
		body["embedding_cache"] = h.opts.CacheMetrics()
	}
	core.WriteJSON(w, http.StatusOK, body)
}

// KillSessionHandler drops every stored chunk, the whole chat log and the
// embedding cache.
func (h *MonitoringHandlers) KillSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.vectors != nil {
		if err := h.vectors.ClearAll(r.Context()); err != nil {
			core.WriteError(w, core.Wrap(core.ErrStorage, "session", "kill", "clear vector store", err))
			return
		}
	}
	if h.chatLog != nil {
		if err := h.chatLog.DeleteAll(r.Context()); err != nil {
			core.WriteError(w, core.Wrap(core.ErrStorage, "session", "kill", "clear chat log", err))
			return
		}
	}
	if h.opts.WorkDir != "" {
		captions.ClearWorkDir(h.opts.WorkDir, h.log)
	}
	if h.opts.CacheClear != nil {
		h.opts.CacheClear()
	}
	h.log.Info("session cleared")
	core.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
