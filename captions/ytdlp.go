package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"tubechat/core"
	"tubechat/utils"
)

// PlayerClients lists the YouTube player clients tried in order. The empty
// entry lets yt-dlp pick its default.
var PlayerClients = []string{"", "web_html5", "web", "desktop", "android", "ios", "tv_html5"}

// CommandRunner executes an external program and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

type YtDlpOptions struct {
	Binary      string
	WorkDir     string
	CookiesFile string
	MaxClients  int
	LockTimeout time.Duration
	Runner      CommandRunner
	Logger      *slog.Logger
}

// YtDlpFetcher downloads caption tracks with the yt-dlp command line tool.
type YtDlpFetcher struct {
	opts YtDlpOptions
	lock *flock.Flock
	log  *slog.Logger
}

type videoMetadata struct {
	ID                string                     `json:"id"`
	DisplayID         string                     `json:"display_id"`
	Title             string                     `json:"title"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
}

func NewYtDlpFetcher(opts YtDlpOptions) (*YtDlpFetcher, error) {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "subs_temp"
	}
	if opts.MaxClients <= 0 || opts.MaxClients > len(PlayerClients) {
		opts.MaxClients = len(PlayerClients)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 2 * time.Minute
	}
	if opts.Runner == nil {
		opts.Runner = runCommand
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create caption work dir: %w", err)
	}
	lockPath := filepath.Clean(opts.WorkDir) + ".lock"
	return &YtDlpFetcher{opts: opts, lock: flock.New(lockPath), log: opts.Logger.With("component", "yt-dlp")}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return out, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return out, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

// WorkDir is where caption files are written.
func (f *YtDlpFetcher) WorkDir() string { return f.opts.WorkDir }

// Fetch tries automatic captions in the preferred languages across every
// player client, then falls back to manual subtitles.
func (f *YtDlpFetcher) Fetch(ctx context.Context, url string, langs []string) (*Result, error) {
	lockCtx, cancel := context.WithTimeout(ctx, f.opts.LockTimeout)
	defer cancel()
	ok, err := f.lock.TryLockContext(lockCtx, 250*time.Millisecond)
	if err != nil || !ok {
		return nil, core.Wrap(core.ErrTimeout, "captions", "lock", "caption work dir is busy", err)
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			f.log.Warn("failed to release caption lock", "error", err)
		}
	}()

	meta, err := f.inspect(ctx, url)
	if err != nil {
		return nil, err
	}
	vid := meta.ID
	if vid == "" {
		vid = meta.DisplayID
	}
	if vid == "" {
		vid = ExtractVideoID(url)
	}

	autoLangs := sortedKeys(meta.AutomaticCaptions)
	manualLangs := sortedKeys(meta.Subtitles)
	ordered := orderLanguages(langs, autoLangs)
	f.log.Info("caption tracks available", "video_id", vid, "auto", autoLangs, "manual", manualLangs, "trying", ordered)

	for _, lang := range ordered {
		for _, client := range PlayerClients[:f.opts.MaxClients] {
			if err := ctx.Err(); err != nil {
				return nil, core.Wrap(core.ErrTimeout, "captions", "download", "cancelled", err)
			}
			path := f.download(ctx, url, vid, lang, client, false)
			if path == "" {
				continue
			}
			label := client
			if label == "" {
				label = "default"
			}
			f.log.Info("caption file found", "file", path, "lang", lang, "player_client", label)
			return &Result{VideoID: vid, Type: TypeAuto, Language: lang, File: path, PlayerClient: label}, nil
		}
	}

	if len(manualLangs) > 0 {
		tried := map[string]bool{}
		candidates := append([]string{}, ordered[:min(1, len(ordered))]...)
		for _, lang := range append(candidates, manualLangs...) {
			if lang == "" || tried[lang] {
				continue
			}
			tried[lang] = true
			if path := f.download(ctx, url, vid, lang, "", true); path != "" {
				return &Result{VideoID: vid, Type: TypeManual, Language: lang, File: path, PlayerClient: "default"}, nil
			}
		}
	}

	return nil, &NoCaptionsError{VideoID: vid, AvailableAuto: autoLangs, AvailableManual: manualLangs}
}

func (f *YtDlpFetcher) baseArgs() []string {
	args := []string{"--quiet", "--no-warnings"}
	if f.opts.CookiesFile != "" {
		if utils.FileExists(f.opts.CookiesFile) {
			args = append(args, "--cookies", f.opts.CookiesFile)
		}
	}
	return args
}

func (f *YtDlpFetcher) inspect(ctx context.Context, url string) (*videoMetadata, error) {
	args := append(f.baseArgs(), "-J", "--skip-download", url)
	out, err := f.opts.Runner(ctx, f.opts.Binary, args...)
	if err != nil {
		return nil, core.Wrap(core.ErrCaptions, "captions", "metadata", "failed to extract info for "+url, err)
	}
	var meta videoMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, core.Wrap(core.ErrCaptions, "captions", "metadata", "decode yt-dlp metadata", err)
	}
	return &meta, nil
}

// download runs one yt-dlp attempt and returns the caption path, or "" when
// nothing usable was written.
func (f *YtDlpFetcher) download(ctx context.Context, url, vid, lang, client string, manual bool) string {
	args := f.baseArgs()
	args = append(args,
		"--skip-download",
		"--sub-format", "vtt",
		"--sub-langs", lang,
		"-o", filepath.Join(f.opts.WorkDir, "%(id)s.%(ext)s"),
	)
	if manual {
		args = append(args, "--write-subs")
	} else {
		args = append(args, "--write-auto-subs")
	}
	if client != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+client)
	}
	args = append(args, url)

	if _, err := f.opts.Runner(ctx, f.opts.Binary, args...); err != nil {
		f.log.Warn("caption download failed", "lang", lang, "player_client", client, "manual", manual, "error", err)
	}
	return findCaptionFile(f.opts.WorkDir, vid, lang)
}

// findCaptionFile checks the names yt-dlp is known to produce, then globs.
func findCaptionFile(dir, vid, lang string) string {
	var candidates []string
	for _, ext := range []string{"vtt", "srt"} {
		candidates = append(candidates, filepath.Join(dir, vid+"."+ext))
	}
	if lang != "" {
		safe := strings.ReplaceAll(lang, "-", "_")
		for _, ext := range []string{"vtt", "srt"} {
			candidates = append(candidates,
				filepath.Join(dir, fmt.Sprintf("%s.%s.%s", vid, safe, ext)),
				filepath.Join(dir, fmt.Sprintf("%s.%s.%s", vid, lang, ext)))
			for _, suffix := range PlayerClients[1:] {
				candidates = append(candidates,
					filepath.Join(dir, fmt.Sprintf("%s.%s.%s.%s", vid, safe, suffix, ext)),
					filepath.Join(dir, fmt.Sprintf("%s.%s.%s.%s", vid, lang, suffix, ext)))
			}
		}
	}
	for _, p := range candidates {
		if utils.FileExists(p) {
			return p
		}
	}
	for _, pattern := range []string{vid + "*.vtt", vid + "*.srt"} {
		if found, _ := filepath.Glob(filepath.Join(dir, pattern)); len(found) > 0 {
			sort.Strings(found)
			return found[0]
		}
	}
	return ""
}

// orderLanguages keeps preferred languages that have automatic captions, or
// the first three automatic languages when none match.
func orderLanguages(preferred, auto []string) []string {
	available := map[string]bool{}
	for _, l := range auto {
		available[l] = true
	}
	var ordered []string
	seen := map[string]bool{}
	for _, p := range preferred {
		if available[p] && !seen[p] {
			seen[p] = true
			ordered = append(ordered, p)
		}
	}
	if len(ordered) == 0 {
		ordered = append(ordered, auto[:min(3, len(auto))]...)
	}
	return ordered
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClearWorkDir removes files from the work directory, keeping the directory.
func ClearWorkDir(dir string, logger *slog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) && logger != nil {
			logger.Warn("could not clear caption work dir", "dir", dir, "error", err)
		}
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && logger != nil {
			logger.Warn("could not delete caption file", "file", e.Name(), "error", err)
		}
	}
}
