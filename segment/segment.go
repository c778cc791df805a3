// Package segment splits container text into translatable units bounded by
// a maximum length, and classifies pass-through spans that must never reach
// the translation provider.
//
// Splitting is span-based: the returned ranges tile the input exactly, so
// an adapter that concatenates the per-span outputs in order reproduces the
// source byte for byte when the translations are identity. Split points
// prefer paragraph boundaries (blank lines), then sentence boundaries, and
// hard-cut on rune boundaries only as a last resort.
package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars is the stock per-unit length budget. It approximates the
// prompt size a single provider call handles comfortably.
const DefaultMaxChars = 4000

// ---------------------------------------------------------------------------
// Pass-through classification
// ---------------------------------------------------------------------------

// fencedBlock matches text that is entirely a fenced code block.
var fencedBlock = regexp.MustCompile("(?s)\\A(```|~~~).*(```|~~~)\\z")

// PassThrough reports whether text must be copied through untranslated:
// fenced code blocks, inline-code-only content, and numeric/formula spans
// carry no translatable prose.
func PassThrough(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if fencedBlock.MatchString(trimmed) {
		return true
	}
	// Inline code spanning the whole unit.
	if len(trimmed) > 1 && strings.HasPrefix(trimmed, "`") && strings.HasSuffix(trimmed, "`") {
		return true
	}
	// Numeric, formula, or punctuation-only content: no letters anywhere.
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Span splitting
// ---------------------------------------------------------------------------

var (
	paragraphSep = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceEnd  = regexp.MustCompile(`[.!?。！？]["')\]]?[ \t\n]`)
)

// Span is a half-open byte range [Start, End) into the split text.
type Span struct {
	Start int
	End   int
}

// SplitSpans tiles text with spans of at most maxChars runes each. Adjacent
// spans share a boundary, so concatenating text[s.Start:s.End] over all
// spans yields the input unchanged. maxChars <= 0 applies DefaultMaxChars.
func SplitSpans(text string, maxChars int) []Span {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return []Span{{0, len(text)}}
	}

	var spans []Span
	start := 0
	for start < len(text) {
		rest := text[start:]
		if utf8.RuneCountInString(rest) <= maxChars {
			spans = append(spans, Span{start, len(text)})
			break
		}
		limit := runeOffset(rest, maxChars)
		cut := findBoundary(rest[:limit])
		if cut <= 0 {
			cut = limit
		}
		spans = append(spans, Span{start, start + cut})
		start += cut
	}
	return spans
}

// runeOffset returns the byte offset of the n-th rune in s (or len(s)).
func runeOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

// findBoundary picks the best split point inside window: the last paragraph
// break, else the last sentence end, else the last whitespace. Returns 0
// when no boundary exists.
func findBoundary(window string) int {
	if locs := paragraphSep.FindAllStringIndex(window, -1); len(locs) > 0 {
		return locs[len(locs)-1][1]
	}
	if locs := sentenceEnd.FindAllStringIndex(window, -1); len(locs) > 0 {
		return locs[len(locs)-1][1]
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx + 1
	}
	return 0
}
