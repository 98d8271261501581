package processors

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"tubechat/core"
)

// LLMConfig is the subset of application config the model clients need.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	EmbeddingDim   int
	ChatModel      string
	MaxTokens      int
	Temperature    float32
}

// NewOpenAIClient builds a client for any OpenAI-compatible endpoint.
func NewOpenAIClient(cfg LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// ---------------- Embeddings ----------------

// Embedder produces fixed-dimension vectors through the embeddings API.
type Embedder struct {
	cli   *openai.Client
	model string
	dim   int
	cache *core.CacheManager
	log   *slog.Logger
}

// NewEmbedder wraps cli. dim <= 0 selects the default dimensionality.
func NewEmbedder(cli *openai.Client, model string, dim int, logger *slog.Logger) *Embedder {
	if model == "" {
		model = core.DefaultEmbeddingModel
	}
	if dim <= 0 {
		dim = core.DefaultEmbeddingDim
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Embedder{cli: cli, model: model, dim: dim, log: logger.With("component", "embedder")}
}

// WithCache memoizes vectors per (model, text). A nil cache disables it.
func (e *Embedder) WithCache(cache *core.CacheManager) *Embedder {
	e.cache = cache
	return e
}

func (e *Embedder) Model() string  { return e.model }
func (e *Embedder) Dimension() int { return e.dim }

// Embed requests one vector. Longer vectors are truncated and renormalized to
// the configured dimension; shorter ones are an ErrEmbeddingService.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := core.CacheKey(e.model, text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}
	req := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{text},
		Dimensions: e.dim,
	}
	resp, err := e.cli.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, core.Wrap(core.ErrEmbeddingService, "embed", e.model, "embedding API failed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, core.Wrap(core.ErrEmbeddingService, "embed", e.model, "no embeddings returned", nil)
	}
	vec := resp.Data[0].Embedding
	if len(vec) < e.dim {
		return nil, core.Wrap(core.ErrEmbeddingService, "embed", e.model,
			fmt.Sprintf("model returned %d dimensions, need %d", len(vec), e.dim), nil)
	}
	if len(vec) > e.dim {
		e.log.Debug("truncating embedding", "from", len(vec), "to", e.dim)
		vec = slicedNormL2(vec, e.dim)
	}
	e.cache.Put(key, vec)
	return vec, nil
}

// EmbedFunc adapts the embedder to the chunker.
func (e *Embedder) EmbedFunc() EmbedFunc {
	return e.Embed
}

// slicedNormL2 keeps the first dim components and L2-normalizes them.
func slicedNormL2(vec []float32, dim int) []float32 {
	if dim > len(vec) {
		dim = len(vec)
	}
	sliced := make([]float32, dim)
	copy(sliced, vec[:dim])

	var norm float64
	for _, v := range sliced {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range sliced {
			sliced[i] = float32(float64(sliced[i]) / norm)
		}
	}
	return sliced
}

// ---------------- Generation ----------------

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIGenerator calls the chat completions API with a single user message.
type OpenAIGenerator struct {
	cli         *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIGenerator(cli *openai.Client, cfg LLMConfig) *OpenAIGenerator {
	g := &OpenAIGenerator{cli: cli, model: cfg.ChatModel, maxTokens: cfg.MaxTokens, temperature: cfg.Temperature}
	if g.model == "" {
		g.model = "gemini-2.0-flash"
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 1000
	}
	return g
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}
	resp, err := g.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", core.Wrap(core.ErrGeneration, "generate", g.model, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", core.Wrap(core.ErrGeneration, "generate", g.model, "no choices returned", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// UnconfiguredGenerator stands in when no API key is configured; every call
// fails with ErrConfiguration.
type UnconfiguredGenerator struct{}

func (UnconfiguredGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no language model configured", core.ErrConfiguration)
}

// UnconfiguredEmbed fails every call with ErrConfiguration.
func UnconfiguredEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: no embedding model configured", core.ErrConfiguration)
}

// ZeroEmbedFunc returns dim-length zero vectors. Used for offline chunking
// where only the windows matter.
func ZeroEmbedFunc(dim int) EmbedFunc {
	if dim <= 0 {
		dim = core.DefaultEmbeddingDim
	}
	return func(context.Context, string) ([]float32, error) {
		return make([]float32, dim), nil
	}
}
