package core

import (
	"fmt"
	"strings"
)

const (
	DefaultMaxParaChars         = 300
	DefaultMaxLinesWithoutPunct = 4
	DefaultChunkSize            = 300
	DefaultChunkOverlap         = 50
	DefaultEmbeddingModel       = "gemini-embedding-001"
	DefaultEmbeddingDim         = 768
	DefaultTopK                 = 4
	DefaultCollectionName       = "video_chunks"
	DefaultPersistDir           = "chromadb_store"
	DefaultEmbedCacheSize       = 1024
)

// DefaultTerminators ends a sentence: Latin ". ? !" and the Devanagari danda.
var DefaultTerminators = []string{".", "?", "!", "।"}

// ProcessorConfig groups the knobs the normalizer and chunker read.
type ProcessorConfig struct {
	MaxParaChars         int      `json:"max_para_chars" toml:"max_para_chars" yaml:"max_para_chars"`
	MaxLinesWithoutPunct int      `json:"max_lines_without_punct" toml:"max_lines_without_punct" yaml:"max_lines_without_punct"`
	Terminators          []string `json:"terminators" toml:"terminators" yaml:"terminators"`
	ChunkSize            int      `json:"chunk_size" toml:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap         int      `json:"chunk_overlap" toml:"chunk_overlap" yaml:"chunk_overlap"`
	EmbedConcurrency     int      `json:"embed_concurrency" toml:"embed_concurrency" yaml:"embed_concurrency"`
	BestEffort           bool     `json:"best_effort" toml:"best_effort" yaml:"best_effort"`
	EmbedCacheSize       int      `json:"embed_cache_size" toml:"embed_cache_size" yaml:"embed_cache_size"`
}

// DefaultProcessorConfig returns the stock segmentation and chunking settings.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		MaxParaChars:         DefaultMaxParaChars,
		MaxLinesWithoutPunct: DefaultMaxLinesWithoutPunct,
		Terminators:          append([]string(nil), DefaultTerminators...),
		ChunkSize:            DefaultChunkSize,
		ChunkOverlap:         DefaultChunkOverlap,
		EmbedConcurrency:     1,
		EmbedCacheSize:       DefaultEmbedCacheSize,
	}
}

// ApplyDefaults fills zero values with defaults and clamps concurrency.
// Overlap is checked by the chunker per call since requests may override it.
func (c *ProcessorConfig) ApplyDefaults() {
	if c.MaxParaChars <= 0 {
		c.MaxParaChars = DefaultMaxParaChars
	}
	if c.MaxLinesWithoutPunct <= 0 {
		c.MaxLinesWithoutPunct = DefaultMaxLinesWithoutPunct
	}
	terms := c.Terminators[:0]
	for _, t := range c.Terminators {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	c.Terminators = terms
	if len(c.Terminators) == 0 {
		c.Terminators = append([]string(nil), DefaultTerminators...)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 1
	}
	if c.EmbedConcurrency > 16 {
		c.EmbedConcurrency = 16
	}
}

// Clone returns a deep copy.
func (c *ProcessorConfig) Clone() *ProcessorConfig {
	clone := *c
	clone.Terminators = append([]string(nil), c.Terminators...)
	return &clone
}

// ValidateChunkWindow checks a window size and overlap pair. Negative overlap
// is allowed and later clamped to 0.
func ValidateChunkWindow(sizeWords, overlapWords int) error {
	if sizeWords <= 0 {
		return Wrap(ErrInvalidArgument, "chunk", "validate", fmt.Sprintf("chunk_size_words must be positive, got %d", sizeWords), nil)
	}
	if overlapWords >= sizeWords {
		return Wrap(ErrInvalidArgument, "chunk", "validate",
			fmt.Sprintf("overlap_words (%d) must be less than chunk_size_words (%d)", overlapWords, sizeWords), nil)
	}
	return nil
}
