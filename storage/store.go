package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"tubechat/core"
)

// VectorStore abstracts the embedding index. Records are addressed by
// core.ChunkRecordID and grouped into named collections.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, chunks []core.Chunk) (int, error)
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]core.Hit, error)
	Reset(ctx context.Context, collection string) error
	ClearAll(ctx context.Context) error
	Close() error
}

// Options selects and configures a vector store backend.
type Options struct {
	Kind      string // memory, pgvector or milvus
	Dimension int

	DatabaseURL      string
	MaintenanceSpec  string
	MilvusAddr       string
	MilvusUsername   string
	MilvusPassword   string
	MilvusAPIKey     string
	MilvusCollection string

	Logger *slog.Logger
}

// NewVectorStore builds the configured backend. When a remote backend cannot
// be reached it logs a warning and falls back to the in-memory store.
func NewVectorStore(ctx context.Context, opts Options) (VectorStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "vector-store")
	if opts.Dimension <= 0 {
		opts.Dimension = core.DefaultEmbeddingDim
	}

	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	switch kind {
	case "", "memory":
		logger.Info("vector store initialized", "backend", "memory")
		return NewMemoryVectorStore(), nil
	case "pgvector":
		s, err := NewPgVectorStore(ctx, opts.DatabaseURL, opts.Dimension, opts.MaintenanceSpec, logger)
		if err != nil {
			logger.Warn("pgvector unavailable, falling back to memory store", "error", err)
			return NewMemoryVectorStore(), nil
		}
		logger.Info("vector store initialized", "backend", "pgvector")
		return s, nil
	case "milvus":
		s, err := NewMilvusVectorStore(ctx, MilvusConfig{
			Address:  opts.MilvusAddr,
			Username: opts.MilvusUsername,
			Password: opts.MilvusPassword,
			APIKey:   opts.MilvusAPIKey,
			Prefix:   opts.MilvusCollection,
			Dim:      opts.Dimension,
		}, logger)
		if err != nil {
			logger.Warn("milvus unavailable, falling back to memory store", "error", err)
			return NewMemoryVectorStore(), nil
		}
		logger.Info("vector store initialized", "backend", "milvus")
		return s, nil
	default:
		return nil, core.Wrap(core.ErrConfiguration, "storage", "init", fmt.Sprintf("unknown vector store %q", opts.Kind), nil)
	}
}

func validateChunks(chunks []core.Chunk, dim int) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return core.Wrap(core.ErrStorage, "storage", "upsert", fmt.Sprintf("%s has no embedding", c.RecordID()), nil)
		}
		if dim > 0 && len(c.Embedding) != dim {
			return core.Wrap(core.ErrStorage, "storage", "upsert",
				fmt.Sprintf("%s has dimension %d, store expects %d", c.RecordID(), len(c.Embedding), dim), nil)
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
