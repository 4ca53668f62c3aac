// Package matching pairs markets across platforms. It normalizes descriptions,
// prefilters pairs by keyword overlap, scores survivors by embedding cosine
// similarity and rejects pairs whose close dates or action verbs disagree.
package matching

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rewired-gh/crossarb/internal/models"
)

// abbreviations are expanded token by token before keyword extraction.
var abbreviations = map[string]string{
	"djt":  "donald trump",
	"dt":   "donald trump",
	"gop":  "republican",
	"dem":  "democrat",
	"pres": "president",
	"vp":   "vice president",
	"nba":  "national basketball association",
	"nfl":  "national football league",
	"mlb":  "major league baseball",
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"usd":  "dollar",
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "as": {},
	"is": {}, "was": {}, "are": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "should": {}, "could": {}, "may": {}, "might": {}, "must": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {},
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:19|20)\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
	regexp.MustCompile(`\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`),
}

// NormalizeString lowercases raw, replaces punctuation other than apostrophes
// with spaces, trims apostrophes from token edges and expands abbreviations.
func NormalizeString(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\'' || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, raw)

	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		if exp, ok := abbreviations[f]; ok {
			out = append(out, exp)
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// ExtractKeywords returns the significant words of normalized text.
func ExtractKeywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		if _, stop := stopWords[w]; stop || len(w) <= 2 {
			continue
		}
		keywords[w] = struct{}{}
	}
	return keywords
}

// ExtractDates returns the raw year and numeric date substrings in text.
func ExtractDates(text string) map[string]struct{} {
	dates := make(map[string]struct{})
	for _, re := range datePatterns {
		for _, m := range re.FindAllString(text, -1) {
			dates[m] = struct{}{}
		}
	}
	return dates
}

// Normalize computes the full normal form of raw without caching. Dates are
// taken from the raw text because normalization splits numeric dates apart.
func Normalize(raw string) models.NormalizedText {
	text := NormalizeString(raw)
	return models.NormalizedText{
		Tokens:   strings.Fields(text),
		Keywords: ExtractKeywords(text),
		Dates:    ExtractDates(strings.ToLower(raw)),
	}
}

// Normalizer caches normal forms by source string.
type Normalizer struct {
	cache *Cache[string, models.NormalizedText]
}

// NewNormalizer creates a Normalizer whose cache holds at most capacity entries.
func NewNormalizer(capacity int) *Normalizer {
	return &Normalizer{cache: NewCache[string, models.NormalizedText](capacity)}
}

// Normalize returns the cached normal form of raw, computing it on first use.
func (n *Normalizer) Normalize(raw string) models.NormalizedText {
	if v, ok := n.cache.Get(raw); ok {
		return v
	}
	v := Normalize(raw)
	n.cache.Put(raw, v)
	return v
}

// CacheLen reports how many descriptions are cached.
func (n *Normalizer) CacheLen() int {
	return n.cache.Len()
}

// Clear empties the cache.
func (n *Normalizer) Clear() {
	n.cache.Clear()
}
