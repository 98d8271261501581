package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tubechat/core"
)

// MemoryVectorStore keeps collections in process memory. Used by default and
// as the fallback when a remote backend is unreachable.
type MemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dim     int
	records map[string]core.Chunk
	order   []string
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{collections: map[string]*memCollection{}}
}

func (s *MemoryVectorStore) Upsert(_ context.Context, collection string, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collections[collection]
	dim := len(chunks[0].Embedding)
	if col != nil && col.dim > 0 {
		dim = col.dim
	}
	if err := validateChunks(chunks, dim); err != nil {
		return 0, err
	}
	if col == nil {
		col = &memCollection{dim: dim, records: map[string]core.Chunk{}}
		s.collections[collection] = col
	}
	for _, c := range chunks {
		id := c.RecordID()
		if _, ok := col.records[id]; !ok {
			col.order = append(col.order, id)
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		col.records[id] = c
	}
	return len(chunks), nil
}

func (s *MemoryVectorStore) Query(_ context.Context, collection string, vector []float32, topK int) ([]core.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.collections[collection]
	if col == nil {
		return nil, core.Wrap(core.ErrNotFound, "storage", "query", fmt.Sprintf("collection %q does not exist", collection), nil)
	}
	if topK <= 0 {
		topK = core.DefaultTopK
	}

	type scored struct {
		id    string
		score float64
	}
	scores := make([]scored, 0, len(col.order))
	for _, id := range col.order {
		scores = append(scores, scored{id: id, score: cosine(vector, col.records[id].Embedding)})
	}
	// Equal scores fall back to record id so results do not depend on upsert order.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})
	if topK > len(scores) {
		topK = len(scores)
	}

	hits := make([]core.Hit, 0, topK)
	for _, sc := range scores[:topK] {
		c := col.records[sc.id]
		hits = append(hits, core.Hit{
			ID:       c.RecordID(),
			VideoID:  c.VideoID,
			ChunkID:  c.ChunkID,
			Filename: c.Filename,
			Model:    c.Model,
			Text:     c.Text,
			Score:    sc.score,
		})
	}
	return hits, nil
}

func (s *MemoryVectorStore) Reset(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

func (s *MemoryVectorStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = map[string]*memCollection{}
	return nil
}

// Count reports how many records a collection holds.
func (s *MemoryVectorStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if col := s.collections[collection]; col != nil {
		return len(col.order)
	}
	return 0
}

func (s *MemoryVectorStore) Close() error { return nil }
