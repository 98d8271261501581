package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tubechat/core"
	"tubechat/storage"
)

// Ingester loads a video into the vector store.
type Ingester interface {
	Run(ctx context.Context, req core.IngestRequest) (*core.IngestResponse, error)
}

// Assistant answers questions about the loaded video.
type Assistant interface {
	Ask(ctx context.Context, query, collection string) (*core.QueryResponse, error)
	Summary(ctx context.Context) (string, error)
	BotReply(ctx context.Context, query string) (string, error)
}

// VectorClearer wipes every stored chunk.
type VectorClearer interface {
	ClearAll(ctx context.Context) error
}

type Options struct {
	CORSOrigins       []string
	DefaultLanguages  string
	DefaultChunkSize  int
	DefaultOverlap    int
	DefaultCollection string
	DefaultPersistDir string
	WorkDir           string
	// Backends names the configured store, chat log and caption source for /health.
	Backends     map[string]string
	CacheMetrics func() core.CacheMetrics
	CacheClear   func()
	Logger       *slog.Logger
}

type Option func(*Options)

func WithCORSOrigins(origins ...string) Option {
	return func(o *Options) { o.CORSOrigins = origins }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func WithDefaults(langs string, chunkSize, overlap int, collection, persistDir string) Option {
	return func(o *Options) {
		o.DefaultLanguages = langs
		o.DefaultChunkSize = chunkSize
		o.DefaultOverlap = overlap
		o.DefaultCollection = collection
		o.DefaultPersistDir = persistDir
	}
}

func WithWorkDir(dir string) Option {
	return func(o *Options) { o.WorkDir = dir }
}

func WithBackends(backends map[string]string) Option {
	return func(o *Options) { o.Backends = backends }
}

// WithCacheMetrics adds embedding cache counters to /health.
func WithCacheMetrics(fn func() core.CacheMetrics) Option {
	return func(o *Options) { o.CacheMetrics = fn }
}

// WithCacheClear runs fn on /kill_session.
func WithCacheClear(fn func()) Option {
	return func(o *Options) { o.CacheClear = fn }
}

// Server exposes ingestion, chat and session routes over HTTP.
type Server struct {
	ingest    *IngestHandlers
	chat      *ChatHandlers
	monitor   *MonitoringHandlers
	opts      Options
	log       *slog.Logger
	httpSrv   *http.Server
	sessionMu sync.RWMutex
}

func New(ingester Ingester, assistant Assistant, vectors VectorClearer, chatLog storage.ChatLog, opts ...Option) *Server {
	o := Options{
		DefaultLanguages:  "hi,en",
		DefaultChunkSize:  core.DefaultChunkSize,
		DefaultOverlap:    core.DefaultChunkOverlap,
		DefaultCollection: core.DefaultCollectionName,
		DefaultPersistDir: core.DefaultPersistDir,
		CORSOrigins:       []string{"*"},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	logger := o.Logger.With("component", "http")

	s := &Server{opts: o, log: logger}
	s.ingest = &IngestHandlers{ingester: ingester, opts: &s.opts, mu: &s.sessionMu, log: logger}
	s.chat = &ChatHandlers{assistant: assistant, chatLog: chatLog, opts: &s.opts, mu: &s.sessionMu, log: logger}
	s.monitor = &MonitoringHandlers{vectors: vectors, chatLog: chatLog, opts: &s.opts, mu: &s.sessionMu, started: time.Now(), log: logger}
	return s
}

// Handler returns the routed handler wrapped in recovery, request logging
// and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.monitor.RootHandler)
	mux.HandleFunc("GET /health", s.monitor.HealthCheckHandler)
	mux.HandleFunc("GET /kill_session", s.monitor.KillSessionHandler)
	mux.HandleFunc("GET /yt_url_chunks_inmemory", s.ingest.IngestHandler)
	mux.HandleFunc("GET /query_chunks", s.chat.QueryHandler)
	mux.HandleFunc("GET /history", s.chat.HistoryHandler)
	mux.HandleFunc("GET /summary", s.chat.SummaryHandler)
	mux.HandleFunc("GET /bot", s.chat.BotHandler)

	var h http.Handler = mux
	h = recoverMiddleware(s.log)(h)
	h = requestLogMiddleware(s.log)(h)
	h = corsMiddleware(s.opts.CORSOrigins)(h)
	return h
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("server listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	s.log.Info("server shutting down")
	return s.httpSrv.Shutdown(ctx)
}
