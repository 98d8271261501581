package processors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tubechat/core"
)

// Retriever returns the chunks closest to a query vector.
type Retriever interface {
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]core.Hit, error)
}

// ChatHistory is the part of the chat log the assistant reads and writes.
type ChatHistory interface {
	Append(ctx context.Context, role, output string) (core.ChatRecord, error)
	LastN(ctx context.Context, n int) ([]core.ChatRecord, error)
}

// AssistantOptions tunes retrieval.
type AssistantOptions struct {
	TopK              int
	SummaryTurns      int
	DefaultCollection string
	Logger            *slog.Logger
}

// Assistant answers questions about the ingested video.
type Assistant struct {
	gen     Generator
	embed   EmbedFunc
	store   Retriever
	history ChatHistory
	opts    AssistantOptions
	log     *slog.Logger
}

func NewAssistant(gen Generator, embed EmbedFunc, store Retriever, history ChatHistory, opts AssistantOptions) *Assistant {
	if opts.TopK <= 0 {
		opts.TopK = core.DefaultTopK
	}
	if opts.SummaryTurns <= 0 {
		opts.SummaryTurns = 4
	}
	if opts.DefaultCollection == "" {
		opts.DefaultCollection = core.DefaultCollectionName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assistant{gen: gen, embed: embed, store: store, history: history, opts: opts, log: logger.With("component", "assistant")}
}

// Ask runs the full question pipeline and records both turns in the chat log.
func (a *Assistant) Ask(ctx context.Context, query, collection string) (*core.QueryResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.Wrap(core.ErrInvalidArgument, "query", "validate", "Query text is empty", nil)
	}
	if collection == "" {
		collection = a.opts.DefaultCollection
	}

	translated := a.TranslateQuery(ctx, query)
	framed, answerType, historyNeeded := a.FrameQuestion(ctx, translated)
	question := a.ResolveQuestion(ctx, framed, historyNeeded)

	if _, err := a.history.Append(ctx, core.RoleUser, query); err != nil {
		return nil, core.Wrap(core.ErrStorage, "query", "chat log", "append user turn", err)
	}

	vec, err := a.embed(ctx, question)
	if err != nil {
		return nil, core.Wrap(core.ErrEmbeddingService, "query", "embed", "query embedding failed", err)
	}
	hits, err := a.store.Query(ctx, collection, vec, a.opts.TopK)
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, "query", "retrieve", collection, err)
	}
	a.log.Info("retrieved chunks", "collection", collection, "hits", len(hits), "answer_type", answerType, "history", historyNeeded)

	answer, err := a.gen.Generate(ctx, answerPrompt(question, answerType, joinHits(hits, a.opts.TopK)))
	if err != nil {
		return nil, err
	}
	if english, err := a.gen.Generate(ctx, englishPrompt(answer)); err == nil && english != "" {
		answer = english
	} else if err != nil {
		a.log.Warn("english translation failed, keeping original answer", "error", err)
	}

	if _, err := a.history.Append(ctx, core.RoleBot, answer); err != nil {
		return nil, core.Wrap(core.ErrStorage, "query", "chat log", "append bot turn", err)
	}

	return &core.QueryResponse{Question: question, Type: answerType, History: historyNeeded, Answer: answer}, nil
}

// TranslateQuery renders the query as Devanagari Hinglish so it lines up with
// Hindi transcripts. The original query is returned on failure.
func (a *Assistant) TranslateQuery(ctx context.Context, query string) string {
	out, err := a.gen.Generate(ctx, hinglishPrompt(query))
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			a.log.Warn("query translation failed, using original", "error", err)
		}
		return query
	}
	return strings.TrimSpace(out)
}

// FrameQuestion returns the refined question, the expected answer type and
// whether chat history is needed ("yes" or "no").
func (a *Assistant) FrameQuestion(ctx context.Context, question string) (string, string, string) {
	raw, err := a.gen.Generate(ctx, framePrompt(question))
	if err != nil {
		a.log.Warn("question framing failed", "error", err)
		return question, AnswerDetailed, "no"
	}
	return ParseFrame(raw, question)
}

// ParseFrame splits "refined | type | history". Missing parts fall back to
// the raw text, "detailed" and "no".
func ParseFrame(raw, fallback string) (string, string, string) {
	raw = trimQuotes(strings.TrimSpace(raw))
	if raw == "" {
		return fallback, AnswerDetailed, "no"
	}
	parts := strings.Split(raw, "|")
	for i := range parts {
		parts[i] = trimQuotes(strings.TrimSpace(parts[i]))
	}

	refined := raw
	if parts[0] != "" {
		refined = parts[0]
	}
	answerType := AnswerDetailed
	if len(parts) > 1 {
		if t := strings.ToLower(parts[1]); answerTypes[t] {
			answerType = t
		}
	}
	historyNeeded := "no"
	if len(parts) > 2 && strings.EqualFold(parts[2], "yes") {
		historyNeeded = "yes"
	}
	return refined, answerType, historyNeeded
}

// ResolveQuestion rewrites a follow-up into a standalone question using the
// conversation summary. Anything but historyNeeded == "yes" is a no-op.
func (a *Assistant) ResolveQuestion(ctx context.Context, question, historyNeeded string) string {
	if !strings.EqualFold(historyNeeded, "yes") {
		return question
	}
	summary, err := a.Summary(ctx)
	if err != nil {
		a.log.Warn("history summary failed", "error", err)
		return question
	}
	out, err := a.gen.Generate(ctx, rewritePrompt(question, summary))
	if err != nil || strings.TrimSpace(out) == "" {
		return question
	}
	return strings.TrimSpace(out)
}

// Summary condenses the most recent chat turns into one paragraph.
func (a *Assistant) Summary(ctx context.Context) (string, error) {
	records, err := a.history.LastN(ctx, a.opts.SummaryTurns)
	if err != nil {
		return "", core.Wrap(core.ErrStorage, "summary", "chat log", "read recent turns", err)
	}
	turns := make([]string, 0, len(records))
	for _, r := range records {
		turns = append(turns, fmt.Sprintf("%s - %s", r.Role, r.Output))
	}
	return a.gen.Generate(ctx, summaryPrompt(turns))
}

// BotReply answers as the TubeChat persona before any video is loaded.
func (a *Assistant) BotReply(ctx context.Context, query string) (string, error) {
	return a.gen.Generate(ctx, botPrompt(query))
}

func joinHits(hits []core.Hit, limit int) string {
	if len(hits) > limit {
		hits = hits[:limit]
	}
	docs := make([]string, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, h.Text)
	}
	return strings.Join(docs, " | ")
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)) ||
			(strings.HasPrefix(s, "“") && strings.HasSuffix(s, "”")) {
			s = strings.TrimPrefix(s, `"`)
			s = strings.TrimSuffix(s, `"`)
			s = strings.TrimPrefix(s, "“")
			s = strings.TrimSuffix(s, "”")
			return strings.TrimSpace(s)
		}
	}
	return s
}
