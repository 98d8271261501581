package processors

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubechat/core"
	"tubechat/storage"
)

// scriptedGenerator answers by matching the first line of the prompt.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	for prefix, err := range g.errs {
		if strings.HasPrefix(prompt, prefix) {
			return "", err
		}
	}
	for prefix, reply := range g.replies {
		if strings.HasPrefix(prompt, prefix) {
			return reply, nil
		}
	}
	return "", nil
}

const (
	hinglishPrefix = "Rewrite the English question"
	framePrefix    = "Analyze the question"
	rewritePrefix  = "Rewrite the question so"
	answerPrefix   = "You explain video content"
	englishPrefix  = "Translate the following answer"
	summaryPrefix  = "Below are the most recent"
	botPrefix      = "You are TubeChat"
)

type fakeRetriever struct {
	hits       []core.Hit
	err        error
	collection string
	vector     []float32
	topK       int
}

func (f *fakeRetriever) Query(_ context.Context, collection string, vector []float32, topK int) ([]core.Hit, error) {
	f.collection, f.vector, f.topK = collection, vector, topK
	return f.hits, f.err
}

func staticEmbed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func TestParseFrame(t *testing.T) {
	cases := []struct {
		raw                      string
		question, kind, history string
	}{
		{"What is ML | definition | no", "What is ML", AnswerDefinition, "no"},
		{`"How does it work | detailed | YES"`, "How does it work", AnswerDetailed, "yes"},
		{"List them | LIST", "List them", AnswerList, "no"},
		{"Is it safe | weird-type | yes", "Is it safe", AnswerDetailed, "yes"},
		{"just text", "just text", AnswerDetailed, "no"},
		{"", "fallback", AnswerDetailed, "no"},
		{" | short | no", "| short | no", AnswerShort, "no"},
	}
	for _, tc := range cases {
		q, kind, history := ParseFrame(tc.raw, "fallback")
		assert.Equal(t, tc.question, q, tc.raw)
		assert.Equal(t, tc.kind, kind, tc.raw)
		assert.Equal(t, tc.history, history, tc.raw)
	}
}

func TestAskRunsFullPipeline(t *testing.T) {
	gen := &scriptedGenerator{replies: map[string]string{
		hinglishPrefix: "साइबॉर्ग क्या है?",
		framePrefix:    "साइबॉर्ग क्या है | definition | no",
		answerPrefix:   "साइबॉर्ग एक मशीन है",
		englishPrefix:  "A cyborg is part machine.",
	}}
	store := &fakeRetriever{hits: []core.Hit{{Text: "one"}, {Text: "two"}, {Text: "three"}, {Text: "four"}, {Text: "five"}}}
	history := storage.NewMemoryChatLog()
	a := NewAssistant(gen, staticEmbed, store, history, AssistantOptions{DefaultCollection: "video_chunks"})

	resp, err := a.Ask(context.Background(), "  what is cyborg?  ", "")
	require.NoError(t, err)
	assert.Equal(t, "साइबॉर्ग क्या है", resp.Question)
	assert.Equal(t, AnswerDefinition, resp.Type)
	assert.Equal(t, "no", resp.History)
	assert.Equal(t, "A cyborg is part machine.", resp.Answer)

	assert.Equal(t, "video_chunks", store.collection)
	assert.Equal(t, core.DefaultTopK, store.topK)

	var answerCall string
	for _, p := range gen.prompts {
		if strings.HasPrefix(p, answerPrefix) {
			answerCall = p
		}
	}
	assert.Contains(t, answerCall, "one | two | three | four")
	assert.NotContains(t, answerCall, "five")

	records, err := history.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, core.RoleUser, records[0].Role)
	assert.Equal(t, "what is cyborg?", records[0].Output)
	assert.Equal(t, core.RoleBot, records[1].Role)
	assert.Equal(t, "A cyborg is part machine.", records[1].Output)
}

func TestAskResolvesFollowUpWithHistory(t *testing.T) {
	gen := &scriptedGenerator{replies: map[string]string{
		hinglishPrefix: "वह कौन था?",
		framePrefix:    "Who was he | short | yes",
		summaryPrefix:  "The user asked about Albert Einstein.",
		rewritePrefix:  "Who was Albert Einstein?",
		answerPrefix:   "A physicist.",
		englishPrefix:  "A physicist.",
	}}
	history := storage.NewMemoryChatLog()
	ctx := context.Background()
	_, _ = history.Append(ctx, core.RoleUser, "tell me about einstein")
	_, _ = history.Append(ctx, core.RoleBot, "Einstein was a physicist.")

	a := NewAssistant(gen, staticEmbed, &fakeRetriever{}, history, AssistantOptions{})
	resp, err := a.Ask(ctx, "who was he?", "custom")
	require.NoError(t, err)
	assert.Equal(t, "Who was Albert Einstein?", resp.Question)
	assert.Equal(t, "yes", resp.History)
	assert.Equal(t, AnswerShort, resp.Type)

	var summaryCall string
	for _, p := range gen.prompts {
		if strings.HasPrefix(p, summaryPrefix) {
			summaryCall = p
		}
	}
	assert.Contains(t, summaryCall, "user - tell me about einstein\nbot - Einstein was a physicist.")
}

func TestAskFallsBackWhenHelpersFail(t *testing.T) {
	gen := &scriptedGenerator{
		replies: map[string]string{answerPrefix: "raw answer"},
		errs: map[string]error{
			hinglishPrefix: errors.New("rate limited"),
			framePrefix:    errors.New("rate limited"),
			englishPrefix:  errors.New("rate limited"),
		},
	}
	a := NewAssistant(gen, staticEmbed, &fakeRetriever{}, storage.NewMemoryChatLog(), AssistantOptions{})

	resp, err := a.Ask(context.Background(), "what is go?", "")
	require.NoError(t, err)
	assert.Equal(t, "what is go?", resp.Question)
	assert.Equal(t, AnswerDetailed, resp.Type)
	assert.Equal(t, "raw answer", resp.Answer)
}

func TestAskErrors(t *testing.T) {
	gen := &scriptedGenerator{}
	ctx := context.Background()

	a := NewAssistant(gen, staticEmbed, &fakeRetriever{}, storage.NewMemoryChatLog(), AssistantOptions{})
	_, err := a.Ask(ctx, "   ", "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	a = NewAssistant(gen, UnconfiguredEmbed, &fakeRetriever{}, storage.NewMemoryChatLog(), AssistantOptions{})
	_, err = a.Ask(ctx, "q", "")
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	a = NewAssistant(gen, staticEmbed, &fakeRetriever{err: core.Wrap(core.ErrNotFound, "", "", "collection", nil)}, storage.NewMemoryChatLog(), AssistantOptions{})
	_, err = a.Ask(ctx, "q", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBotReplyAndSummary(t *testing.T) {
	gen := &scriptedGenerator{replies: map[string]string{
		botPrefix:     "Hi, I am TubeChat. Upload a YouTube URL!",
		summaryPrefix: "Nothing yet.",
	}}
	a := NewAssistant(gen, staticEmbed, &fakeRetriever{}, storage.NewMemoryChatLog(), AssistantOptions{})

	reply, err := a.BotReply(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi, I am TubeChat. Upload a YouTube URL!", reply)

	summary, err := a.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Nothing yet.", summary)
}
