// Package captions downloads YouTube caption tracks for ingestion.
package captions

import (
	"context"
	"fmt"
	"strings"

	"tubechat/core"
)

const (
	TypeAuto    = "auto"
	TypeManual  = "manual"
	TypeUnknown = "unknown"
)

// Fetcher resolves a YouTube URL or id into a caption track.
type Fetcher interface {
	Fetch(ctx context.Context, url string, langs []string) (*Result, error)
}

// Result describes a fetched track. File is set when the track was written to
// disk; Text holds the transcript when only text is available.
type Result struct {
	VideoID      string
	Type         string
	Language     string
	File         string
	Text         string
	PlayerClient string
	JobStatus    string
}

// NoCaptionsError reports a video without downloadable captions.
type NoCaptionsError struct {
	VideoID         string
	AvailableAuto   []string
	AvailableManual []string
}

func (e *NoCaptionsError) Error() string {
	return fmt.Sprintf("no downloadable automatic or manual captions found for %s (auto: [%s], manual: [%s])",
		e.VideoID, strings.Join(e.AvailableAuto, ", "), strings.Join(e.AvailableManual, ", "))
}

func (e *NoCaptionsError) Unwrap() error { return core.ErrNotFound }
