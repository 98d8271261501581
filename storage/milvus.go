package storage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"tubechat/core"
)

var milvusNameRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

type MilvusConfig struct {
	Address  string
	Username string
	Password string
	APIKey   string // Zilliz Cloud
	Prefix   string
	Dim      int
}

// MilvusVectorStore maps each collection name onto a Milvus collection
// named prefix + sanitized name.
type MilvusVectorStore struct {
	mc     client.Client
	prefix string
	dim    int
	log    *slog.Logger

	mu    sync.Mutex
	ready map[string]bool
}

func NewMilvusVectorStore(ctx context.Context, cfg MilvusConfig, logger *slog.Logger) (*MilvusVectorStore, error) {
	if cfg.Address == "" {
		cfg.Address = "localhost:19530"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "tubechat_"
	}
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	return &MilvusVectorStore{mc: mc, prefix: cfg.Prefix, dim: cfg.Dim, log: logger, ready: map[string]bool{}}, nil
}

func (s *MilvusVectorStore) collectionName(name string) string {
	return s.prefix + milvusNameRe.ReplaceAllString(name, "_")
}

func (s *MilvusVectorStore) ensureCollection(ctx context.Context, coll string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready[coll] {
		return nil
	}

	has, err := s.mc.HasCollection(ctx, coll)
	if err != nil {
		return fmt.Errorf("has collection %s: %w", coll, err)
	}
	if !has {
		schema := entity.NewSchema().WithName(coll).WithDescription("transcript chunks").
			WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(512)).
			WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(255)).
			WithField(entity.NewField().WithName("chunk_id").WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName("filename").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
			WithField(entity.NewField().WithName("model").WithDataType(entity.FieldTypeVarChar).WithMaxLength(255)).
			WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))
		if err := s.mc.CreateCollection(ctx, schema, 2); err != nil {
			return fmt.Errorf("create collection %s: %w", coll, err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
		if err != nil {
			return fmt.Errorf("new hnsw index: %w", err)
		}
		if err := s.mc.CreateIndex(ctx, coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	if err := s.mc.LoadCollection(ctx, coll, false); err != nil {
		return fmt.Errorf("load collection %s: %w", coll, err)
	}
	s.ready[coll] = true
	return nil
}

func (s *MilvusVectorStore) Upsert(ctx context.Context, collection string, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := validateChunks(chunks, s.dim); err != nil {
		return 0, err
	}
	coll := s.collectionName(collection)
	if err := s.ensureCollection(ctx, coll); err != nil {
		return 0, err
	}

	n := len(chunks)
	ids := make([]string, 0, n)
	videoIDs := make([]string, 0, n)
	chunkIDs := make([]int64, 0, n)
	filenames := make([]string, 0, n)
	models := make([]string, 0, n)
	texts := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	for _, c := range chunks {
		ids = append(ids, c.RecordID())
		videoIDs = append(videoIDs, c.VideoID)
		chunkIDs = append(chunkIDs, int64(c.ChunkID))
		filenames = append(filenames, c.Filename)
		models = append(models, c.Model)
		texts = append(texts, c.Text)
		vectors = append(vectors, c.Embedding)
	}

	_, err := s.mc.Upsert(ctx, coll, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnInt64("chunk_id", chunkIDs),
		entity.NewColumnVarChar("filename", filenames),
		entity.NewColumnVarChar("model", models),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert into %s: %w", coll, err)
	}
	return n, nil
}

func (s *MilvusVectorStore) Query(ctx context.Context, collection string, vector []float32, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		topK = core.DefaultTopK
	}
	coll := s.collectionName(collection)
	has, err := s.mc.HasCollection(ctx, coll)
	if err != nil {
		return nil, fmt.Errorf("has collection %s: %w", coll, err)
	}
	if !has {
		return nil, core.Wrap(core.ErrNotFound, "storage", "query", fmt.Sprintf("collection %q does not exist", collection), nil)
	}
	if err := s.ensureCollection(ctx, coll); err != nil {
		return nil, err
	}

	sp, err := entity.NewIndexHNSWSearchParam(74)
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}
	res, err := s.mc.Search(ctx, coll, []string{}, "", []string{"id", "video_id", "chunk_id", "filename", "model", "text"},
		[]entity.Vector{entity.FloatVector(vector)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", coll, err)
	}

	var hits []core.Hit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			h := core.Hit{Score: float64(r.Scores[i])}
			h.ID = varcharAt(cols["id"], i)
			h.VideoID = varcharAt(cols["video_id"], i)
			h.Filename = varcharAt(cols["filename"], i)
			h.Model = varcharAt(cols["model"], i)
			h.Text = varcharAt(cols["text"], i)
			if c, ok := cols["chunk_id"].(*entity.ColumnInt64); ok {
				if data := c.Data(); i < len(data) {
					h.ChunkID = int(data[i])
				}
			}
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func varcharAt(col entity.Column, i int) string {
	if c, ok := col.(*entity.ColumnVarChar); ok {
		if data := c.Data(); i < len(data) {
			return data[i]
		}
	}
	return ""
}

func (s *MilvusVectorStore) Reset(ctx context.Context, collection string) error {
	coll := s.collectionName(collection)
	return s.drop(ctx, coll)
}

// ClearAll drops every collection carrying this store's prefix.
func (s *MilvusVectorStore) ClearAll(ctx context.Context) error {
	colls, err := s.mc.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range colls {
		if strings.HasPrefix(c.Name, s.prefix) {
			if err := s.drop(ctx, c.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *MilvusVectorStore) drop(ctx context.Context, coll string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	has, err := s.mc.HasCollection(ctx, coll)
	if err != nil {
		return fmt.Errorf("has collection %s: %w", coll, err)
	}
	if has {
		if err := s.mc.DropCollection(ctx, coll); err != nil {
			return fmt.Errorf("drop collection %s: %w", coll, err)
		}
	}
	delete(s.ready, coll)
	return nil
}

func (s *MilvusVectorStore) Close() error {
	return s.mc.Close()
}
