package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tubechat/captions"
	"tubechat/core"
	"tubechat/utils"
)

// ChunkStore is the part of the vector store ingestion writes to.
type ChunkStore interface {
	Upsert(ctx context.Context, collection string, chunks []core.Chunk) (int, error)
	Reset(ctx context.Context, collection string) error
}

// SessionResetter clears the conversation when a new video is loaded.
type SessionResetter interface {
	DeleteAll(ctx context.Context) error
}

type IngestOptions struct {
	WorkDir           string
	DefaultCollection string
	DefaultPersistDir string
	Logger            *slog.Logger
}

// IngestPipeline turns a YouTube URL into embedded chunks in the vector store.
type IngestPipeline struct {
	fetcher    captions.Fetcher
	normalizer *Normalizer
	chunker    *Chunker
	store      ChunkStore
	session    SessionResetter
	opts       IngestOptions
	log        *slog.Logger
}

func NewIngestPipeline(fetcher captions.Fetcher, normalizer *Normalizer, chunker *Chunker, store ChunkStore, session SessionResetter, opts IngestOptions) *IngestPipeline {
	if opts.WorkDir == "" {
		opts.WorkDir = "subs_temp"
	}
	if opts.DefaultCollection == "" {
		opts.DefaultCollection = core.DefaultCollectionName
	}
	if opts.DefaultPersistDir == "" {
		opts.DefaultPersistDir = core.DefaultPersistDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IngestPipeline{
		fetcher:    fetcher,
		normalizer: normalizer,
		chunker:    chunker,
		store:      store,
		session:    session,
		opts:       opts,
		log:        logger.With("component", "ingest"),
	}
}

// Run fetches captions, normalizes and chunks them, and stores the chunks.
// Starting an ingest always clears the chat log.
func (p *IngestPipeline) Run(ctx context.Context, req core.IngestRequest) (*core.IngestResponse, error) {
	collection := strings.TrimSpace(req.CollectionName)
	if collection == "" {
		collection = p.opts.DefaultCollection
	}
	persistDir := req.PersistDir
	if persistDir == "" {
		persistDir = p.opts.DefaultPersistDir
	}
	resp := &core.IngestResponse{
		CollectionName:  collection,
		PersistDir:      persistDir,
		ResetCollection: req.ResetCollection,
		Steps:           make([]core.Step, 0, 6),
	}
	fail := func(step string, err error) (*core.IngestResponse, error) {
		resp.Steps = append(resp.Steps, core.Step{Name: step, Status: "failed", Error: err.Error()})
		p.log.Warn("ingest step failed", "step", step, "url", req.URL, "error", err)
		return resp, err
	}

	// Step 1: validate input before touching the session
	if err := captions.ValidateURL(req.URL); err != nil {
		return fail("validate", err)
	}
	if err := core.ValidateChunkWindow(req.ChunkSize, req.Overlap); err != nil {
		return fail("validate", err)
	}
	resp.Steps = append(resp.Steps, core.Step{Name: "validate", Status: "completed"})

	// Step 2: new session
	if p.session != nil {
		if err := p.session.DeleteAll(ctx); err != nil {
			return fail("reset_session", core.Wrap(core.ErrStorage, "ingest", "reset session", "clear chat log", err))
		}
	}
	captions.ClearWorkDir(p.opts.WorkDir, p.log)
	resp.Steps = append(resp.Steps, core.Step{Name: "reset_session", Status: "completed"})

	langs := captions.ParseLanguages(req.Langs)
	resp.VideoID = captions.ExtractVideoID(req.URL)
	p.log.Info("ingest started", "video_id", resp.VideoID, "langs", langs, "collection", collection)

	// Step 3: captions
	result, err := p.fetcher.Fetch(ctx, strings.TrimSpace(req.URL), langs)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrCaptions) &&
			!errors.Is(err, core.ErrTimeout) && !errors.Is(err, core.ErrEmptyInput) {
			err = core.Wrap(core.ErrCaptions, "ingest", "fetch", "caption download failed", err)
		}
		return fail("fetch_captions", err)
	}
	if result.VideoID != "" {
		resp.VideoID = result.VideoID
	}
	resp.CaptionType = result.Type
	resp.Language = result.Language
	resp.JobStatus = result.JobStatus
	resp.Steps = append(resp.Steps, core.Step{Name: "fetch_captions", Status: "completed"})

	// Step 4: normalize
	paragraphs, err := p.paragraphs(result)
	if err != nil {
		return fail("normalize", err)
	}
	if len(paragraphs) == 0 {
		return fail("normalize", core.Wrap(core.ErrEmptyInput, "ingest", "normalize", "No paragraphs generated from captions", nil))
	}
	resp.ParagraphsCount = len(paragraphs)
	resp.Steps = append(resp.Steps, core.Step{Name: "normalize", Status: "completed"})

	// Step 5: chunk and embed
	chunks, err := p.chunker.CreateChunks(ctx, paragraphs, req.ChunkSize, req.Overlap, resp.VideoID+".txt", resp.VideoID)
	if err != nil {
		var partial *ChunkErrors
		if !errors.As(err, &partial) || len(chunks) == 0 {
			return fail("chunk", err)
		}
		resp.Warnings = append(resp.Warnings, err.Error())
	}
	if len(chunks) == 0 {
		return fail("chunk", core.Wrap(core.ErrEmptyInput, "ingest", "chunk", "No chunks/embeddings generated from transcript", nil))
	}
	resp.Steps = append(resp.Steps, core.Step{Name: "chunk", Status: "completed"})

	// Step 6: store
	if req.ResetCollection {
		if err := p.store.Reset(ctx, collection); err != nil {
			return fail("store", core.Wrap(core.ErrStorage, "ingest", "store", "reset collection "+collection, err))
		}
	}
	stored, err := p.store.Upsert(ctx, collection, chunks)
	if err != nil {
		return fail("store", core.Wrap(core.ErrStorage, "ingest", "store", "Failed to persist embeddings", err))
	}
	resp.ChunksCreated = stored
	resp.Steps = append(resp.Steps, core.Step{Name: "store", Status: "completed"})

	resp.DetectedLanguage = captions.DetectLanguage(strings.Join(paragraphs[:min(len(paragraphs), 20)], " "))
	if resp.Language == "" {
		resp.Language = resp.DetectedLanguage
	}
	resp.Status = "ok"
	p.log.Info("ingest completed", "video_id", resp.VideoID, "paragraphs", resp.ParagraphsCount,
		"chunks", resp.ChunksCreated, "caption_type", resp.CaptionType, "language", resp.Language)
	return resp, nil
}

// paragraphs normalizes the fetched caption file, or the fetched transcript
// text written out as a caption file.
func (p *IngestPipeline) paragraphs(result *captions.Result) ([]string, error) {
	path := result.File
	if path == "" {
		lines := captions.TranscriptLines(result.Text)
		if len(lines) == 0 {
			return nil, nil
		}
		if err := utils.EnsureDir(p.opts.WorkDir); err != nil {
			return nil, core.Wrap(core.ErrStorage, "ingest", "normalize", "create work dir", err)
		}
		path = filepath.Join(p.opts.WorkDir, fmt.Sprintf("%s.transcript.vtt", result.VideoID))
		doc := "WEBVTT\n\n" + strings.Join(lines, "\n") + "\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			return nil, core.Wrap(core.ErrStorage, "ingest", "normalize", "write transcript", err)
		}
	}
	return p.normalizer.NormalizeFile(path)
}
