package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"tubechat/core"
)

const defaultSupadataURL = "https://api.supadata.ai/v1"

var (
	supadataSpaceRe = regexp.MustCompile(`\s+`)
	supadataPunctRe = regexp.MustCompile(` ([.,!?])`)
	supadataSplitRe = regexp.MustCompile("[।\n]")
)

type SupadataOptions struct {
	APIKey       string
	BaseURL      string
	PollAttempts int
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// SupadataFetcher pulls transcripts from the Supadata API, which proxies
// YouTube and avoids its IP blocking of hosted servers.
type SupadataFetcher struct {
	opts   SupadataOptions
	client *http.Client
	log    *slog.Logger
}

type supadataResponse struct {
	Content json.RawMessage `json:"content"`
	Lang    string          `json:"lang"`
	JobID   string          `json:"jobId"`
	Status  string          `json:"status"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func NewSupadataFetcher(opts SupadataOptions) *SupadataFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultSupadataURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 10
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SupadataFetcher{opts: opts, client: client, log: logger.With("component", "supadata")}
}

// Fetch requests a transcript in the first preferred language. Long videos
// come back as a job that is polled until it completes.
func (f *SupadataFetcher) Fetch(ctx context.Context, videoURL string, langs []string) (*Result, error) {
	lang := "en"
	if len(langs) > 0 {
		lang = langs[0]
	}
	q := url.Values{}
	q.Set("url", videoURL)
	q.Set("lang", lang)
	q.Set("text", "true")
	q.Set("mode", "auto")

	resp, err := f.get(ctx, f.opts.BaseURL+"/transcript?"+q.Encode())
	if err != nil {
		return nil, core.Wrap(core.ErrCaptions, "captions", "supadata", "Transcript service error", err)
	}

	status := "completed"
	text := contentText(resp.Content)
	if resp.JobID != "" {
		f.log.Info("transcript job queued, polling", "job_id", resp.JobID)
		text, status, err = f.poll(ctx, resp.JobID)
		if err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, core.Wrap(core.ErrEmptyInput, "captions", "supadata", "Transcript text is empty", nil)
	}
	if resp.Lang != "" {
		lang = resp.Lang
	}
	return &Result{
		VideoID:   ExtractVideoID(videoURL),
		Type:      TypeUnknown,
		Language:  lang,
		Text:      text,
		JobStatus: status,
	}, nil
}

func (f *SupadataFetcher) poll(ctx context.Context, jobID string) (string, string, error) {
	status := "unknown"
	for attempt := 0; attempt < f.opts.PollAttempts; attempt++ {
		job, err := f.get(ctx, f.opts.BaseURL+"/transcript/"+url.PathEscape(jobID))
		if err != nil {
			return "", status, core.Wrap(core.ErrCaptions, "captions", "supadata", "job status", err)
		}
		status = job.Status
		if status == "" {
			status = "unknown"
		}
		f.log.Debug("transcript job poll", "job_id", jobID, "status", status, "attempt", attempt+1)

		switch status {
		case "completed":
			return contentText(job.Content), status, nil
		case "failed", "error":
			return "", status, core.Wrap(core.ErrCaptions, "captions", "supadata",
				fmt.Sprintf("Transcript job failed with status: %s %s", status, job.Error), nil)
		}

		select {
		case <-ctx.Done():
			return "", status, core.Wrap(core.ErrTimeout, "captions", "supadata", "polling cancelled", ctx.Err())
		case <-time.After(f.opts.PollInterval):
		}
	}
	return "", status, core.Wrap(core.ErrTimeout, "captions", "supadata",
		fmt.Sprintf("Transcript job did not complete in time (last status: %s)", status), nil)
}

func (f *SupadataFetcher) get(ctx context.Context, endpoint string) (*supadataResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", f.opts.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out supadataResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}

// contentText accepts content as a plain string or as a list of segments
// with a text field.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var segments []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		parts := make([]string, 0, len(segments))
		for _, seg := range segments {
			parts = append(parts, seg.Text)
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

// TranscriptLines splits transcript text on newlines and the Devanagari
// danda, collapsing whitespace inside each line.
func TranscriptLines(text string) []string {
	var lines []string
	for _, p := range supadataSplitRe.Split(text, -1) {
		p = strings.TrimSpace(supadataSpaceRe.ReplaceAllString(p, " "))
		p = supadataPunctRe.ReplaceAllString(p, "$1")
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
