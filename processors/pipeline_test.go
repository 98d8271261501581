package processors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubechat/captions"
	"tubechat/core"
	"tubechat/storage"
)

const testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type fakeFetcher struct {
	dir    string
	vtt    string
	text   string
	err    error
	langs  []string
	called bool
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, langs []string) (*captions.Result, error) {
	f.called = true
	f.langs = langs
	if f.err != nil {
		return nil, f.err
	}
	vid := captions.ExtractVideoID(url)
	if f.text != "" {
		return &captions.Result{VideoID: vid, Type: captions.TypeUnknown, Text: f.text, JobStatus: "completed"}, nil
	}
	path := filepath.Join(f.dir, vid+".en.vtt")
	if err := os.WriteFile(path, []byte(f.vtt), 0o644); err != nil {
		return nil, err
	}
	return &captions.Result{VideoID: vid, Type: captions.TypeAuto, Language: "en", File: path, PlayerClient: "web"}, nil
}

type pipelineFixture struct {
	fetcher *fakeFetcher
	store   *storage.MemoryVectorStore
	chatLog *storage.MemoryChatLog
	embeds  *recordingEmbedder
	p       *IngestPipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()
	f := &pipelineFixture{
		fetcher: &fakeFetcher{dir: dir, vtt: rollingVTT},
		store:   storage.NewMemoryVectorStore(),
		chatLog: storage.NewMemoryChatLog(),
		embeds:  &recordingEmbedder{},
	}
	chunker := NewChunker(f.embeds.embed, ChunkerOptions{Model: "test-model", Dimension: 2})
	f.p = NewIngestPipeline(f.fetcher, NewNormalizer(NormalizerOptions{}), chunker, f.store, f.chatLog, IngestOptions{WorkDir: dir})
	return f
}

func ingestRequest(url string) core.IngestRequest {
	return core.IngestRequest{URL: url, Langs: "hi,en", ChunkSize: 3, Overlap: 1, ResetCollection: true}
}

func stepNames(steps []core.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Name+":"+s.Status)
	}
	return out
}

func TestIngestPipelineRun(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	_, _ = f.chatLog.Append(ctx, core.RoleUser, "old question")

	resp, err := f.p.Run(ctx, ingestRequest(testVideoURL))
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "dQw4w9WgXcQ", resp.VideoID)
	assert.Equal(t, captions.TypeAuto, resp.CaptionType)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, 1, resp.ParagraphsCount)
	// "hello world this is a test." is 6 words: windows of 3 with step 2.
	assert.Equal(t, 3, resp.ChunksCreated)
	assert.Equal(t, core.DefaultCollectionName, resp.CollectionName)
	assert.Equal(t, core.DefaultPersistDir, resp.PersistDir)
	assert.Equal(t, []string{
		"validate:completed", "reset_session:completed", "fetch_captions:completed", "normalize:completed",
		"chunk:completed", "store:completed",
	}, stepNames(resp.Steps))

	assert.Equal(t, []string{"hi", "en"}, f.fetcher.langs)
	assert.Equal(t, 3, f.store.Count(core.DefaultCollectionName))
	records, _ := f.chatLog.All(ctx)
	assert.Empty(t, records)
}

func TestIngestPipelineTextTranscript(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.text = "पहली पंक्ति।दूसरी पंक्ति\nthird line ."

	resp, err := f.p.Run(context.Background(), ingestRequest("dQw4w9WgXcQ"))
	require.NoError(t, err)
	assert.Equal(t, captions.TypeUnknown, resp.CaptionType)
	assert.Equal(t, "completed", resp.JobStatus)
	assert.Equal(t, resp.DetectedLanguage, resp.Language)
	assert.Positive(t, resp.ChunksCreated)
	assert.FileExists(t, filepath.Join(f.fetcher.dir, "dQw4w9WgXcQ.transcript.vtt"))
}

func TestIngestPipelineKeepsCollectionWithoutReset(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	_, err := f.store.Upsert(ctx, "shared", []core.Chunk{{VideoID: "other", ChunkID: 1, Text: "x", Embedding: []float32{1, 1}}})
	require.NoError(t, err)

	req := ingestRequest(testVideoURL)
	req.CollectionName = "shared"
	req.ResetCollection = false
	_, err = f.p.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 4, f.store.Count("shared"))

	req.ResetCollection = true
	_, err = f.p.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, f.store.Count("shared"))
}

func TestIngestPipelineErrors(t *testing.T) {
	cases := []struct {
		name     string
		setup    func(f *pipelineFixture, req *core.IngestRequest)
		want     error
		failedAt string
	}{
		{
			name:     "empty url",
			setup:    func(_ *pipelineFixture, req *core.IngestRequest) { req.URL = "" },
			want:     core.ErrInvalidArgument,
			failedAt: "validate",
		},
		{
			name: "no captions",
			setup: func(f *pipelineFixture, _ *core.IngestRequest) {
				f.fetcher.err = &captions.NoCaptionsError{VideoID: "dQw4w9WgXcQ"}
			},
			want:     core.ErrNotFound,
			failedAt: "fetch_captions",
		},
		{
			name:     "fetch failure",
			setup:    func(f *pipelineFixture, _ *core.IngestRequest) { f.fetcher.err = errors.New("exit status 1") },
			want:     core.ErrCaptions,
			failedAt: "fetch_captions",
		},
		{
			name:     "captions without text",
			setup:    func(f *pipelineFixture, _ *core.IngestRequest) { f.fetcher.vtt = "WEBVTT\n\n00:00.000 --> 00:01.000\n\n" },
			want:     core.ErrEmptyInput,
			failedAt: "normalize",
		},
		{
			name:     "overlap too large",
			setup:    func(_ *pipelineFixture, req *core.IngestRequest) { req.Overlap = req.ChunkSize },
			want:     core.ErrInvalidArgument,
			failedAt: "validate",
		},
		{
			name:     "zero chunk size",
			setup:    func(_ *pipelineFixture, req *core.IngestRequest) { req.ChunkSize = 0 },
			want:     core.ErrInvalidArgument,
			failedAt: "validate",
		},
		{
			name: "every window fails",
			setup: func(f *pipelineFixture, _ *core.IngestRequest) {
				f.p.chunker = NewChunker(UnconfiguredEmbed, ChunkerOptions{Mode: BestEffort})
			},
			want:     core.ErrEmbeddingService,
			failedAt: "chunk",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			req := ingestRequest(testVideoURL)
			tc.setup(f, &req)

			resp, err := f.p.Run(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			require.NotNil(t, resp)
			require.NotEmpty(t, resp.Steps)
			last := resp.Steps[len(resp.Steps)-1]
			assert.Equal(t, tc.failedAt, last.Name)
			assert.Equal(t, "failed", last.Status)
			assert.Equal(t, 0, f.store.Count(core.DefaultCollectionName))
		})
	}
}

func TestIngestPipelineBadWindowKeepsSession(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	_, _ = f.chatLog.Append(ctx, core.RoleUser, "old question")
	leftover := filepath.Join(f.fetcher.dir, "old.en.vtt")
	require.NoError(t, os.WriteFile(leftover, []byte("WEBVTT"), 0o644))

	req := ingestRequest(testVideoURL)
	req.Overlap = 5
	resp, err := f.p.Run(ctx, req)
	require.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Equal(t, []string{"validate:failed"}, stepNames(resp.Steps))
	assert.False(t, f.fetcher.called)

	records, _ := f.chatLog.All(ctx)
	assert.Len(t, records, 1)
	assert.FileExists(t, leftover)
}

func TestIngestPipelineBestEffortWarnings(t *testing.T) {
	f := newPipelineFixture(t)
	f.embeds.fail = map[string]bool{"a test.": true}
	f.p.chunker = NewChunker(f.embeds.embed, ChunkerOptions{Dimension: 2, Mode: BestEffort})

	resp, err := f.p.Run(context.Background(), ingestRequest(testVideoURL))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ChunksCreated)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "chunk 3")
}
