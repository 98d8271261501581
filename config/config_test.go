package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubechat/core"
)

var configEnvKeys = []string{
	"API_KEY", "BASE_URL", "EMBEDDING_MODEL", "CHAT_MODEL", "STORE", "POSTGRES_URL", "DATABASE_URL",
	"MILVUS_ADDR", "MILVUS_USERNAME", "MILVUS_PASSWORD", "MILVUS_API_KEY", "MILVUS_COLLECTION",
	"INDEX_MAINTENANCE_CRON", "CHATLOG", "CHATLOG_PATH", "REDIS_ADDR", "REDIS_PASSWORD",
	"CAPTION_SOURCE", "SUPADATA_API_KEY", "SUPADATA_BASE_URL", "YTDLP_PATH", "COOKIES_FILE",
	"WORK_DIR", "LOG_LEVEL", "LOG_FORMAT", "EMBEDDING_DIM", "REDIS_DB", "PORT", "MAX_PARA_CHARS",
	"MAX_LINES_WITHOUT_PUNCT", "CHUNK_SIZE", "CHUNK_OVERLAP", "EMBED_CONCURRENCY", "EMBED_CACHE_SIZE",
	"CORS_ORIGINS", "LANGUAGES",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "sqlite", cfg.ChatLog)
	assert.Equal(t, "ytdlp", cfg.CaptionSource)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, core.DefaultEmbeddingModel, cfg.EmbeddingModel)
	assert.Equal(t, core.DefaultChunkSize, cfg.Processor.ChunkSize)
	assert.Equal(t, core.DefaultChunkOverlap, cfg.Processor.ChunkOverlap)
	assert.Equal(t, core.DefaultTerminators, cfg.Processor.Terminators)
	assert.False(t, cfg.HasValidAPI())
}

func TestLoadFileFormats(t *testing.T) {
	cases := map[string]string{
		"config.json": `{"api_key":"sk-json-0123456789","store":" PGVector ","processor":{"chunk_size":200}}`,
		"config.toml": "api_key = \"sk-json-0123456789\"\nstore = \"PGVector\"\n\n[processor]\nchunk_size = 200\n",
		"config.yaml": "api_key: sk-json-0123456789\nstore: PGVector\nprocessor:\n  chunk_size: 200\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearConfigEnv(t)
			cfg, err := Load(writeConfig(t, name, body))
			require.NoError(t, err)
			assert.Equal(t, "sk-json-0123456789", cfg.APIKey)
			assert.Equal(t, "pgvector", cfg.Store)
			assert.Equal(t, 200, cfg.Processor.ChunkSize)
			assert.Equal(t, core.DefaultChunkOverlap, cfg.Processor.ChunkOverlap)
			assert.Equal(t, DefaultChatModel, cfg.ChatModel)
			assert.True(t, cfg.HasValidAPI())
		})
	}
}

func TestLoadErrors(t *testing.T) {
	clearConfigEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = Load(writeConfig(t, "broken.json", "{not json"))
	assert.ErrorIs(t, err, core.ErrConfiguration)

	t.Setenv("PORT", "eighty")
	_, err = Load("")
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Contains(t, err.Error(), "PORT")
}

func TestEnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "config.json", `{"port":7000,"store":"memory"}`)
	t.Setenv("PORT", "9000")
	t.Setenv("STORE", "milvus")
	t.Setenv("POSTGRES_URL", "postgres://old@db/one")
	t.Setenv("DATABASE_URL", "postgres://new@db/two")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("LANGUAGES", "hi")
	t.Setenv("EMBED_CONCURRENCY", "64")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "milvus", cfg.Store)
	assert.Equal(t, "postgres://new@db/two", cfg.DatabaseURL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"hi"}, cfg.Languages)
	assert.Equal(t, 16, cfg.Processor.EmbedConcurrency)
}

func TestPostgresURLAlias(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("POSTGRES_URL", "postgres://alias@db/tubechat")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://alias@db/tubechat", cfg.DatabaseURL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Contains(t, err.Error(), "API Key is required")

	cfg.APIKey = "sk-live-0123456789"
	require.NoError(t, cfg.Validate())

	cfg.Processor.ChunkOverlap = cfg.Processor.ChunkSize
	cfg.Store = "chroma"
	cfg.CaptionSource = "supadata"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Chunk overlap must be smaller than chunk size")
	assert.Contains(t, err.Error(), `Unknown store "chroma"`)
	assert.Contains(t, err.Error(), "Supadata API key is required")
}

func TestComponentOptions(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "sk-live-0123456789"
	cfg.Store = "pgvector"
	cfg.DatabaseURL = "postgres://u@h/db"

	llm := cfg.LLM()
	assert.Equal(t, cfg.APIKey, llm.APIKey)
	assert.Equal(t, DefaultChatModel, llm.ChatModel)
	assert.Equal(t, core.DefaultEmbeddingDim, llm.EmbeddingDim)

	vs := cfg.VectorStore(nil)
	assert.Equal(t, "pgvector", vs.Kind)
	assert.Equal(t, "postgres://u@h/db", vs.DatabaseURL)
	assert.Equal(t, "@every 30m", vs.MaintenanceSpec)

	cl := cfg.ChatLogOptions(nil)
	assert.Equal(t, "sqlite", cl.Kind)
	assert.Equal(t, filepath.Join("data", "chat.db"), cl.Path)
}

func TestPrintInstructions(t *testing.T) {
	var buf bytes.Buffer
	PrintInstructions(&buf)
	assert.Contains(t, buf.String(), "api_key")
	assert.Contains(t, buf.String(), DefaultBaseURL)
}
