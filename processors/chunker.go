package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"tubechat/core"
)

// EmbedFunc returns the vector for one piece of text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ChunkMode selects what happens when a window fails to embed.
type ChunkMode int

const (
	// FailFast aborts the whole call on the first embedding error.
	FailFast ChunkMode = iota
	// BestEffort keeps every chunk that embedded and reports the rest in a *ChunkErrors.
	BestEffort
)

// ChunkerOptions configures a Chunker.
type ChunkerOptions struct {
	Model       string
	// Dimension every vector must have; others count as embedding failures.
	Dimension   int
	Concurrency int
	Mode        ChunkMode
	Logger      *slog.Logger
}

// Chunker cuts a paragraph sequence into overlapping word windows and embeds them.
type Chunker struct {
	embed EmbedFunc
	opts  ChunkerOptions
	log   *slog.Logger
}

// ChunkError records one window that could not be embedded.
type ChunkError struct {
	ChunkID int
	Err     error
}

// ChunkErrors is returned alongside partial results in BestEffort mode.
type ChunkErrors struct {
	Failed []ChunkError
}

func (e *ChunkErrors) Error() string {
	if len(e.Failed) == 1 {
		return fmt.Sprintf("chunk %d: %v", e.Failed[0].ChunkID, e.Failed[0].Err)
	}
	return fmt.Sprintf("%d chunks failed to embed, first: chunk %d: %v", len(e.Failed), e.Failed[0].ChunkID, e.Failed[0].Err)
}

func (e *ChunkErrors) Unwrap() error { return core.ErrEmbeddingService }

type window struct {
	id   int
	text string
}

// NewChunker wires an embedding function. A nil Logger discards output.
func NewChunker(embed EmbedFunc, opts ChunkerOptions) *Chunker {
	if opts.Model == "" {
		opts.Model = core.DefaultEmbeddingModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = core.DefaultEmbeddingDim
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chunker{embed: embed, opts: opts, log: logger.With("component", "chunker")}
}

// SplitWindows computes the window texts without embedding them.
func SplitWindows(paragraphs []string, sizeWords, overlapWords int) ([]string, error) {
	if err := core.ValidateChunkWindow(sizeWords, overlapWords); err != nil {
		return nil, err
	}
	if overlapWords < 0 {
		overlapWords = 0
	}

	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	words := strings.Fields(strings.Join(kept, "\n\n"))
	n := len(words)
	if n == 0 {
		return nil, nil
	}

	step := sizeWords - overlapWords
	var out []string
	for start := 0; start < n; start += step {
		end := min(start+sizeWords, n)
		out = append(out, strings.Join(words[start:end], " "))
		if end >= n {
			break
		}
	}
	return out, nil
}

// CreateChunks windows the paragraphs and embeds every window. Chunk ids run
// 1..k in window order. An empty word stream yields no chunks and no embed calls.
func (c *Chunker) CreateChunks(ctx context.Context, paragraphs []string, sizeWords, overlapWords int, filename, videoID string) ([]core.Chunk, error) {
	texts, err := SplitWindows(paragraphs, sizeWords, overlapWords)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if c.embed == nil {
		return nil, core.Wrap(core.ErrConfiguration, "chunk", "embed", "no embedding function configured", nil)
	}
	if filename == "" {
		filename = videoID + ".txt"
	}

	windows := make([]window, len(texts))
	for i, t := range texts {
		windows[i] = window{id: i + 1, text: t}
	}

	vectors := make([][]float32, len(windows))
	errs := make([]error, len(windows))
	if c.opts.Concurrency == 1 {
		err = c.embedSequential(ctx, windows, vectors, errs)
	} else {
		err = c.embedConcurrent(ctx, windows, vectors, errs)
	}
	if err != nil {
		return nil, err
	}

	chunks := make([]core.Chunk, 0, len(windows))
	var failed []ChunkError
	for i, w := range windows {
		if errs[i] != nil {
			failed = append(failed, ChunkError{ChunkID: w.id, Err: errs[i]})
			continue
		}
		chunks = append(chunks, core.Chunk{
			ChunkID:      w.id,
			Text:         w.text,
			Embedding:    vectors[i],
			EmbeddingDim: len(vectors[i]),
			Model:        c.opts.Model,
			Filename:     filename,
			VideoID:      videoID,
		})
	}

	c.log.Info("chunks created", "video_id", videoID, "chunks", len(chunks), "failed", len(failed),
		"size_words", sizeWords, "overlap_words", overlapWords)

	if len(failed) > 0 {
		return chunks, &ChunkErrors{Failed: failed}
	}
	return chunks, nil
}

func (c *Chunker) embedOne(ctx context.Context, w window) ([]float32, error) {
	vec, err := c.embed(ctx, w.text)
	if err != nil {
		if errors.Is(err, core.ErrEmbeddingService) {
			return nil, fmt.Errorf("chunk %d: %w", w.id, err)
		}
		return nil, core.Wrap(core.ErrEmbeddingService, "chunk", "embed", fmt.Sprintf("chunk %d", w.id), err)
	}
	if len(vec) == 0 {
		return nil, core.Wrap(core.ErrEmbeddingService, "chunk", "embed", fmt.Sprintf("chunk %d: empty vector", w.id), nil)
	}
	if len(vec) != c.opts.Dimension {
		return nil, core.Wrap(core.ErrEmbeddingService, "chunk", "embed",
			fmt.Sprintf("chunk %d: vector has dimension %d, want %d", w.id, len(vec), c.opts.Dimension), nil)
	}
	return vec, nil
}

func (c *Chunker) embedSequential(ctx context.Context, windows []window, vectors [][]float32, errs []error) error {
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return core.Wrap(core.ErrTimeout, "chunk", "embed", "cancelled", err)
		}
		vec, err := c.embedOne(ctx, w)
		if err != nil {
			if c.opts.Mode == FailFast {
				return err
			}
			c.log.Warn("chunk embedding failed", "chunk_id", w.id, "error", err)
			errs[i] = err
			continue
		}
		vectors[i] = vec
	}
	return nil
}

// embedConcurrent fans the embed calls out over a bounded group. Window text
// and ids are fixed beforehand, so results are reassembled by index.
func (c *Chunker) embedConcurrent(ctx context.Context, windows []window, vectors [][]float32, errs []error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, w := range windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				if c.opts.Mode == FailFast {
					return nil
				}
				errs[i] = err
				return nil
			}
			vec, err := c.embedOne(gctx, w)
			if err != nil {
				if c.opts.Mode == FailFast {
					return err
				}
				c.log.Warn("chunk embedding failed", "chunk_id", w.id, "error", err)
				errs[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return core.Wrap(core.ErrTimeout, "chunk", "embed", "cancelled", err)
	}
	return nil
}
