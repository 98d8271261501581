package processors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tubechat/core"
)

var (
	headerRe     = regexp.MustCompile(`(?i)^\s*WEBVTT`)
	headerMetaRe = regexp.MustCompile(`^(Kind|Language):`)
	timestampRe  = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?[.,]?\d{0,3}\s*-->\s*\d{1,2}:\d{2}(?::\d{2})?[.,]?\d{0,3}`)
	timingTagRe  = regexp.MustCompile(`<\d{1,2}:\d{2}(?::\d{2})?[.,]?\d{0,3}>`)
	markupTagRe  = regexp.MustCompile(`</?[^>]+>`)
	alignRe      = regexp.MustCompile(`align:\w+\s*`)
	positionRe   = regexp.MustCompile(`position:\d+%`)
	numericRe    = regexp.MustCompile(`^\d+$`)
	spaceRe      = regexp.MustCompile(`\s+`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// NormalizerOptions controls sentence and paragraph segmentation.
type NormalizerOptions struct {
	MaxParaChars         int
	MaxLinesWithoutPunct int
	// Terminators close a sentence when a caption line ends with one of them.
	Terminators []string
}

// Normalizer turns WebVTT caption tracks into prose. It holds no state
// between calls and is safe for concurrent use.
type Normalizer struct {
	opts      NormalizerOptions
	tightenRe *regexp.Regexp
}

// NewNormalizer builds a Normalizer, filling unset options with defaults.
func NewNormalizer(opts NormalizerOptions) *Normalizer {
	cfg := core.ProcessorConfig{
		MaxParaChars:         opts.MaxParaChars,
		MaxLinesWithoutPunct: opts.MaxLinesWithoutPunct,
		Terminators:          append([]string(nil), opts.Terminators...),
	}
	cfg.ApplyDefaults()
	opts.MaxParaChars = cfg.MaxParaChars
	opts.MaxLinesWithoutPunct = cfg.MaxLinesWithoutPunct
	opts.Terminators = cfg.Terminators

	return &Normalizer{opts: opts, tightenRe: buildTightenRe(opts.Terminators)}
}

// NewNormalizerFromConfig adapts a ProcessorConfig.
func NewNormalizerFromConfig(cfg *core.ProcessorConfig) *Normalizer {
	if cfg == nil {
		cfg = core.DefaultProcessorConfig()
	}
	return NewNormalizer(NormalizerOptions{
		MaxParaChars:         cfg.MaxParaChars,
		MaxLinesWithoutPunct: cfg.MaxLinesWithoutPunct,
		Terminators:          cfg.Terminators,
	})
}

// Options returns the effective options.
func (n *Normalizer) Options() NormalizerOptions {
	out := n.opts
	out.Terminators = append([]string(nil), n.opts.Terminators...)
	return out
}

// NormalizeFile reads a caption file and returns its paragraphs.
func (n *Normalizer) NormalizeFile(path string) ([]string, error) {
	raw, err := readCaptionFile(path)
	if err != nil {
		return nil, err
	}
	return n.Normalize(raw), nil
}

// PlainTextFile reads a caption file and returns it as flat text.
func (n *Normalizer) PlainTextFile(path string) (string, error) {
	raw, err := readCaptionFile(path)
	if err != nil {
		return "", err
	}
	return n.ToPlainText(raw), nil
}

// Normalize converts a caption document into paragraphs in cue order.
// Malformed markup is dropped line by line; the result may be empty.
func (n *Normalizer) Normalize(doc string) []string {
	lines := dedupeConsecutive(cleanCueLines(decodeCaptions(doc), true))
	sentences := n.buildSentences(lines)
	paragraphs := n.buildParagraphs(sentences)

	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.TrimSpace(n.tightenRe.ReplaceAllString(p, "$1"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ToPlainText returns the cleaned caption lines joined by newlines without
// deduplication or paragraph grouping.
func (n *Normalizer) ToPlainText(doc string) string {
	lines := cleanCueLines(decodeCaptions(doc), false)
	plain := strings.Join(lines, "\n")
	plain = blankRunRe.ReplaceAllString(plain, "\n\n")
	return strings.TrimSpace(plain)
}

func (n *Normalizer) endsSentence(line string) bool {
	for _, t := range n.opts.Terminators {
		if strings.HasSuffix(line, t) {
			return true
		}
	}
	return false
}

func (n *Normalizer) buildSentences(lines []string) []string {
	var (
		sentences []string
		buf       []string
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		if s := strings.TrimSpace(strings.Join(buf, " ")); s != "" {
			sentences = append(sentences, s)
		}
		buf = buf[:0]
	}

	for _, ln := range lines {
		buf = append(buf, ln)
		if n.endsSentence(ln) || len(buf) >= n.opts.MaxLinesWithoutPunct {
			flush()
		}
	}
	flush()
	return sentences
}

func (n *Normalizer) buildParagraphs(sentences []string) []string {
	var (
		paragraphs []string
		cur        []string
		curLen     int
	)
	for _, s := range sentences {
		cur = append(cur, s)
		curLen += utf8.RuneCountInString(s)
		if curLen >= n.opts.MaxParaChars || len(cur) >= 3 {
			paragraphs = append(paragraphs, strings.Join(cur, " "))
			cur = cur[:0]
			curLen = 0
		}
	}
	if len(cur) > 0 {
		paragraphs = append(paragraphs, strings.Join(cur, " "))
	}
	return paragraphs
}

// cleanCueLines strips every structural line and inline directive, returning
// trimmed non-empty text lines in source order. When collapse is set, runs of
// whitespace inside a line become one space.
func cleanCueLines(doc string, collapse bool) []string {
	rawLines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(rawLines))
	inHeader := false

	for i, raw := range rawLines {
		s := strings.TrimSpace(strings.TrimRight(raw, "\r"))

		if headerRe.MatchString(s) {
			inHeader = i == 0 || len(out) == 0
			continue
		}
		if inHeader {
			if s == "" {
				inHeader = false
				continue
			}
			if headerMetaRe.MatchString(s) {
				continue
			}
			inHeader = false
		}
		if isBlockMarker(s) {
			continue
		}
		if loc := timestampRe.FindStringIndex(s); loc != nil {
			s = strings.TrimSpace(s[:loc[0]])
		}
		s = timingTagRe.ReplaceAllString(s, "")
		s = markupTagRe.ReplaceAllString(s, "")
		s = alignRe.ReplaceAllString(s, "")
		s = positionRe.ReplaceAllString(s, "")
		if collapse {
			s = spaceRe.ReplaceAllString(s, " ")
		}
		s = strings.TrimSpace(s)
		if s == "" || numericRe.MatchString(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

var blockMarkers = []string{"NOTE", "STYLE", "REGION"}

// isBlockMarker matches the WebVTT keyword alone or followed by a space or
// tab, so caption text such as "Notes are..." is kept.
func isBlockMarker(s string) bool {
	for _, m := range blockMarkers {
		if s == m || strings.HasPrefix(s, m+" ") || strings.HasPrefix(s, m+"\t") {
			return true
		}
	}
	return false
}

func dedupeConsecutive(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i, ln := range lines {
		if i > 0 && ln == lines[i-1] {
			continue
		}
		out = append(out, ln)
	}
	return out
}

// decodeCaptions strips a UTF-8 BOM and replaces invalid byte sequences with
// U+FFFD.
func decodeCaptions(doc string) string {
	decoded, _, err := transform.String(unicode.UTF8BOM.NewDecoder(), doc)
	if err != nil {
		return strings.TrimPrefix(strings.ToValidUTF8(doc, "\uFFFD"), "\uFEFF")
	}
	return decoded
}

func readCaptionFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", core.Wrap(core.ErrNotFound, "normalize", "read", fmt.Sprintf("caption file not found: %s", path), nil)
		}
		return "", core.Wrap(core.ErrStorage, "normalize", "read", path, err)
	}
	return string(data), nil
}

func buildTightenRe(terminators []string) *regexp.Regexp {
	seen := map[string]bool{}
	alts := make([]string, 0, len(terminators)+3)
	for _, t := range append(append([]string(nil), terminators...), ",", ";", ":") {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		alts = append(alts, regexp.QuoteMeta(t))
	}
	return regexp.MustCompile(`\s+(` + strings.Join(alts, "|") + `)`)
}
