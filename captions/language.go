package captions

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DefaultLanguages is used when a request names no valid language.
var DefaultLanguages = []string{"hi", "en"}

// ParseLanguages splits a comma list and keeps entries that parse as BCP 47
// tags, in their original spelling. Duplicates are dropped.
func ParseLanguages(raw string) []string {
	seen := map[string]bool{}
	var langs []string
	for _, part := range strings.Split(raw, ",") {
		p := strings.TrimSpace(part)
		if p == "" || seen[p] {
			continue
		}
		if _, err := language.Parse(p); err != nil {
			continue
		}
		seen[p] = true
		langs = append(langs, p)
	}
	if len(langs) == 0 {
		return append([]string{}, DefaultLanguages...)
	}
	return langs
}

// DetectLanguage guesses the ISO 639-1 code of a transcript. Empty when the
// text is too short to tell.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Lang == -1 {
		return ""
	}
	return info.Lang.Iso6391()
}
