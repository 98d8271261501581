package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := ProcessorConfig{Terminators: []string{" ", ""}, ChunkOverlap: -3, EmbedConcurrency: 40}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultMaxParaChars, cfg.MaxParaChars)
	assert.Equal(t, DefaultMaxLinesWithoutPunct, cfg.MaxLinesWithoutPunct)
	assert.Equal(t, DefaultTerminators, cfg.Terminators)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Zero(t, cfg.ChunkOverlap)
	assert.Equal(t, 16, cfg.EmbedConcurrency)
}

func TestValidateChunkWindow(t *testing.T) {
	assert.NoError(t, ValidateChunkWindow(300, 50))
	assert.NoError(t, ValidateChunkWindow(5, -2))
	assert.ErrorIs(t, ValidateChunkWindow(5, 5), ErrInvalidArgument)
	assert.ErrorIs(t, ValidateChunkWindow(0, 0), ErrInvalidArgument)
	assert.ErrorIs(t, ValidateChunkWindow(-1, -5), ErrInvalidArgument)
}
