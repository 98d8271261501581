package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"tubechat/core"
)

// IngestHandlers loads videos into the vector store.
type IngestHandlers struct {
	ingester Ingester
	opts     *Options
	mu       *sync.RWMutex
	log      *slog.Logger
}

// IngestHandler serves /yt_url_chunks_inmemory. Ingestion holds the session
// lock exclusively since it clears the chat log.
func (h *IngestHandlers) IngestHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r.URL.Query())
	if err != nil {
		core.WriteError(w, err)
		return
	}

	h.mu.Lock()
	resp, err := h.ingester.Run(r.Context(), req)
	h.mu.Unlock()
	if err != nil {
		h.log.Warn("ingest failed", "url", req.URL, "error", err)
		core.WriteError(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, resp)
}

func (h *IngestHandlers) parseRequest(q url.Values) (core.IngestRequest, error) {
	req := core.IngestRequest{
		URL:             strings.TrimSpace(q.Get("url")),
		Langs:           q.Get("langs"),
		ChunkSize:       h.opts.DefaultChunkSize,
		Overlap:         h.opts.DefaultOverlap,
		CollectionName:  q.Get("collection_name"),
		PersistDir:      q.Get("persist_dir"),
		ResetCollection: true,
	}
	if !q.Has("url") {
		return req, core.Wrap(core.ErrInvalidArgument, "ingest", "params", "url is required", nil)
	}
	if req.Langs == "" {
		req.Langs = h.opts.DefaultLanguages
	}
	if req.CollectionName == "" {
		req.CollectionName = h.opts.DefaultCollection
	}
	if req.PersistDir == "" {
		req.PersistDir = h.opts.DefaultPersistDir
	}

	var err error
	if req.ChunkSize, err = intParam(q, "chunk_size", req.ChunkSize); err != nil {
		return req, err
	}
	if req.Overlap, err = intParam(q, "overlap", req.Overlap); err != nil {
		return req, err
	}
	if err := core.ValidateChunkWindow(req.ChunkSize, req.Overlap); err != nil {
		return req, err
	}
	if v := q.Get("reset_collection"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return req, core.Wrap(core.ErrInvalidArgument, "ingest", "params", fmt.Sprintf("reset_collection must be a boolean, got %q", v), nil)
		}
		req.ResetCollection = b
	}
	return req, nil
}

func intParam(q url.Values, name string, fallback int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Wrap(core.ErrInvalidArgument, "ingest", "params", fmt.Sprintf("%s must be an integer, got %q", name, v), nil)
	}
	return n, nil
}
