// Package initialization assembles the service from its configuration.
package initialization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"tubechat/captions"
	"tubechat/config"
	"tubechat/core"
	"tubechat/processors"
	"tubechat/server"
	"tubechat/storage"
	"tubechat/utils"
)

const embedCacheTTL = 24 * time.Hour

// System holds every long-lived component of a running service.
type System struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      storage.VectorStore
	ChatLog    storage.ChatLog
	Fetcher    captions.Fetcher
	Normalizer *processors.Normalizer
	Chunker    *processors.Chunker
	Assistant  *processors.Assistant
	Pipeline   *processors.IngestPipeline
	Server     *server.Server
}

// SystemInitializer builds a System step by step and unwinds on failure.
type SystemInitializer struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup []func() error
}

func NewSystemInitializer(cfg *config.Config, logger *slog.Logger) *SystemInitializer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SystemInitializer{cfg: cfg, logger: logger}
}

// InitializeSystem wires stores, model clients, caption fetcher, pipeline and
// HTTP server. A missing API key is logged, not fatal; model calls then fail
// with a configuration error.
func (si *SystemInitializer) InitializeSystem(ctx context.Context) (*System, error) {
	cfg := si.cfg
	sys := &System{Config: cfg, Logger: si.logger}

	si.logger.Info("initializing",
		"store", cfg.Store, "chatlog", cfg.ChatLog, "caption_source", cfg.CaptionSource,
		"embedding_model", cfg.EmbeddingModel, "chat_model", cfg.ChatModel, "api_key", maskAPIKey(cfg.APIKey))

	if err := si.createDirectories(); err != nil {
		return nil, err
	}

	store, err := storage.NewVectorStore(ctx, cfg.VectorStore(si.logger))
	if err != nil {
		return nil, si.fail(fmt.Errorf("init vector store: %w", err))
	}
	si.cleanup = append(si.cleanup, store.Close)
	sys.Store = store

	chatLog, err := storage.NewChatLog(ctx, cfg.ChatLogOptions(si.logger))
	if err != nil {
		return nil, si.fail(fmt.Errorf("init chat log: %w", err))
	}
	si.cleanup = append(si.cleanup, chatLog.Close)
	sys.ChatLog = chatLog

	fetcher, err := si.newFetcher()
	if err != nil {
		return nil, si.fail(err)
	}
	sys.Fetcher = fetcher

	cache := core.NewCacheManager(cfg.Processor.EmbedCacheSize, embedCacheTTL)
	var gen processors.Generator = processors.UnconfiguredGenerator{}
	var embed processors.EmbedFunc = processors.UnconfiguredEmbed
	model, dim := cfg.EmbeddingModel, cfg.EmbeddingDim
	if cfg.HasValidAPI() {
		cli := processors.NewOpenAIClient(cfg.LLM())
		gen = processors.NewOpenAIGenerator(cli, cfg.LLM())
		embedder := processors.NewEmbedder(cli, cfg.EmbeddingModel, cfg.EmbeddingDim, si.logger).WithCache(cache)
		embed = embedder.EmbedFunc()
		model, dim = embedder.Model(), embedder.Dimension()
	} else {
		si.logger.Warn("no API key configured, questions and ingestion will fail until one is set")
	}

	mode := processors.FailFast
	if cfg.Processor.BestEffort {
		mode = processors.BestEffort
	}
	sys.Normalizer = processors.NewNormalizerFromConfig(&cfg.Processor)
	sys.Chunker = processors.NewChunker(embed, processors.ChunkerOptions{
		Model:       model,
		Dimension:   dim,
		Concurrency: cfg.Processor.EmbedConcurrency,
		Mode:        mode,
		Logger:      si.logger,
	})
	sys.Assistant = processors.NewAssistant(gen, embed, store, chatLog, processors.AssistantOptions{
		DefaultCollection: cfg.CollectionName,
		Logger:            si.logger,
	})
	sys.Pipeline = processors.NewIngestPipeline(fetcher, sys.Normalizer, sys.Chunker, store, chatLog, processors.IngestOptions{
		WorkDir:           cfg.WorkDir,
		DefaultCollection: cfg.CollectionName,
		DefaultPersistDir: cfg.PersistDir,
		Logger:            si.logger,
	})

	sys.Server = server.New(sys.Pipeline, sys.Assistant, store, chatLog,
		server.WithLogger(si.logger),
		server.WithCORSOrigins(cfg.CORSOrigins...),
		server.WithDefaults(defaultLanguages(cfg.Languages), cfg.Processor.ChunkSize, cfg.Processor.ChunkOverlap, cfg.CollectionName, cfg.PersistDir),
		server.WithWorkDir(cfg.WorkDir),
		server.WithCacheMetrics(cache.Metrics),
		server.WithCacheClear(cache.Clear),
		server.WithBackends(map[string]string{
			"vector_store":   cfg.Store,
			"chat_log":       cfg.ChatLog,
			"caption_source": cfg.CaptionSource,
		}),
	)
	si.logger.Info("initialization complete")
	return sys, nil
}

func (si *SystemInitializer) newFetcher() (captions.Fetcher, error) {
	switch si.cfg.CaptionSource {
	case "supadata":
		return captions.NewSupadataFetcher(captions.SupadataOptions{
			APIKey:  si.cfg.SupadataAPIKey,
			BaseURL: si.cfg.SupadataBaseURL,
			Logger:  si.logger,
		}), nil
	case "", "ytdlp":
		f, err := captions.NewYtDlpFetcher(captions.YtDlpOptions{
			Binary:      si.cfg.YtDlpPath,
			WorkDir:     si.cfg.WorkDir,
			CookiesFile: si.cfg.CookiesFile,
			Logger:      si.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init yt-dlp fetcher: %w", err)
		}
		return f, nil
	default:
		return nil, core.Wrap(core.ErrConfiguration, "init", "captions", fmt.Sprintf("unknown caption source %q", si.cfg.CaptionSource), nil)
	}
}

func (si *SystemInitializer) createDirectories() error {
	dirs := []string{si.cfg.WorkDir}
	if si.cfg.ChatLog == "sqlite" {
		dirs = append(dirs, filepath.Dir(si.cfg.ChatLogPath))
	}
	for _, dir := range dirs {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (si *SystemInitializer) fail(err error) error {
	if cerr := si.Cleanup(); cerr != nil {
		si.logger.Warn("cleanup after failed initialization", "error", cerr)
	}
	return err
}

// Cleanup closes everything opened so far, newest first.
func (si *SystemInitializer) Cleanup() error {
	var errs []error
	for i := len(si.cleanup) - 1; i >= 0; i-- {
		if err := si.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	si.cleanup = nil
	return errors.Join(errs...)
}

func defaultLanguages(langs []string) string {
	if len(langs) == 0 {
		return strings.Join(captions.DefaultLanguages, ",")
	}
	return strings.Join(langs, ",")
}

func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}
	return apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
}
