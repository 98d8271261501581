package core

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrStorage, "store", "upsert", "write chunks", cause)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage error: store: upsert: write chunks: connection refused", err.Error())
}

func TestWrapWithoutDetail(t *testing.T) {
	err := Wrap(ErrNotFound, "", " ", "", nil)
	assert.Equal(t, "not found: failure", err.Error())

	err = Wrap(nil, "x", "", "", nil)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Wrap(ErrInvalidArgument, "", "", "bad", nil), http.StatusBadRequest},
		{Wrap(ErrNotFound, "", "", "gone", nil), http.StatusNotFound},
		{fmt.Errorf("outer: %w", ErrTimeout), http.StatusGatewayTimeout},
		{ErrCaptions, http.StatusBadGateway},
		{ErrEmbeddingService, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "%v", tc.err)
	}
}

func TestWriteErrorUsesMappedStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Wrap(ErrInvalidArgument, "query", "params", "Query text is empty", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"invalid argument: query: params: Query text is empty"}`, rec.Body.String())
}

func TestWriteJSONKeepsNonLatinText(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"answer": "नमस्ते <b>"})
	assert.Contains(t, rec.Body.String(), "नमस्ते <b>")
}

func TestChunkRecordID(t *testing.T) {
	assert.Equal(t, "abc_chunk_3", ChunkRecordID("abc", 3))
	assert.Equal(t, "abc_chunk_1", Chunk{VideoID: "abc", ChunkID: 1}.RecordID())
}
