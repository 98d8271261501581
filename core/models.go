package core

import (
	"fmt"
	"time"
)

// ========== Chunks and retrieval ==========

// Chunk is one embedded word window of a transcript.
type Chunk struct {
	ChunkID      int       `json:"chunk_id"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding"`
	EmbeddingDim int       `json:"embedding_dim"`
	Model        string    `json:"model"`
	Filename     string    `json:"filename"`
	VideoID      string    `json:"video_id"`
}

// RecordID is the content address used by every vector store.
func (c Chunk) RecordID() string {
	return ChunkRecordID(c.VideoID, c.ChunkID)
}

// ChunkRecordID formats "{video_id}_chunk_{chunk_id}".
func ChunkRecordID(videoID string, chunkID int) string {
	return fmt.Sprintf("%s_chunk_%d", videoID, chunkID)
}

// Hit is a chunk returned by a similarity query.
type Hit struct {
	ID       string  `json:"id"`
	VideoID  string  `json:"video_id"`
	ChunkID  int     `json:"chunk_id"`
	Filename string  `json:"filename"`
	Model    string  `json:"model"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// ========== Chat log ==========

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// TimestampLayout is the chat record timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

type ChatRecord struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Output    string `json:"output"`
	Timestamp string `json:"timestamp"`
}

// NewChatRecord stamps a record with the current local time.
func NewChatRecord(role, output string) ChatRecord {
	return ChatRecord{Role: role, Output: output, Timestamp: time.Now().Format(TimestampLayout)}
}

type HistoryResponse struct {
	Total   int          `json:"total"`
	Records []ChatRecord `json:"records"`
}

// ========== Ingest ==========

type IngestRequest struct {
	URL             string `json:"url"`
	Langs           string `json:"langs"`
	ChunkSize       int    `json:"chunk_size"`
	Overlap         int    `json:"overlap"`
	CollectionName  string `json:"collection_name"`
	PersistDir      string `json:"persist_dir"`
	ResetCollection bool   `json:"reset_collection"`
}

type IngestResponse struct {
	Status           string   `json:"status"`
	VideoID          string   `json:"video_id"`
	CaptionType      string   `json:"caption_type"`
	Language         string   `json:"language"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
	ParagraphsCount  int      `json:"paragraphs_count"`
	ChunksCreated    int      `json:"chunks_created"`
	CollectionName   string   `json:"collection_name"`
	PersistDir       string   `json:"persist_dir"`
	ResetCollection  bool     `json:"reset_collection"`
	JobStatus        string   `json:"job_status,omitempty"`
	Steps            []Step   `json:"steps,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Step records the outcome of one ingest stage.
type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "completed", "failed", "skipped"
	Error  string `json:"error,omitempty"`
}

// ========== Query ==========

type QueryResponse struct {
	Question string `json:"question"`
	Type     string `json:"type"`
	History  string `json:"history"`
	Answer   string `json:"answer"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}
