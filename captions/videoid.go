package captions

import (
	"strings"

	"tubechat/core"
)

// ExtractVideoID accepts a full YouTube URL or a bare id and returns the id.
//
//	https://youtu.be/vuOx32ypfGY?si=abc          -> vuOx32ypfGY
//	https://www.youtube.com/watch?v=vuOx32ypfGY&t=1 -> vuOx32ypfGY
//	vuOx32ypfGY                                  -> vuOx32ypfGY
func ExtractVideoID(urlOrID string) string {
	u := strings.TrimSpace(urlOrID)
	if !strings.Contains(u, "http://") && !strings.Contains(u, "https://") && !strings.Contains(u, "/") {
		return u
	}
	if _, after, ok := strings.Cut(u, "v="); ok {
		id, _, _ := strings.Cut(after, "&")
		return id
	}
	last := u[strings.LastIndex(u, "/")+1:]
	id, _, _ := strings.Cut(last, "?")
	return id
}

// ValidateURL rejects empty input and strings that are neither a URL, a
// YouTube link nor a bare id.
func ValidateURL(raw string) error {
	u := strings.TrimSpace(raw)
	if u == "" {
		return core.Wrap(core.ErrInvalidArgument, "ingest", "validate", "URL or video id is required", nil)
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.Contains(u, "youtu") {
		return nil
	}
	if strings.ContainsAny(u, "/ \t") {
		return core.Wrap(core.ErrInvalidArgument, "ingest", "validate", "not a YouTube URL or video id: "+u, nil)
	}
	return nil
}
