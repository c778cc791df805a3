package segment

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Pass-through classification
// ---------------------------------------------------------------------------

func TestPassThrough(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"prose", "This is a sentence.", false},
		{"empty", "", true},
		{"whitespace only", "  \n\t ", true},
		{"fenced code block", "```go\nfunc main() {}\n```", true},
		{"tilde fence", "~~~\nraw\n~~~", true},
		{"whole inline code", "`grep -r foo`", true},
		{"inline code inside prose", "run `make` to build", false},
		{"numbers only", "3.14159 / 2.71828", true},
		{"punctuation only", "----==----", true},
		{"cyrillic prose", "Привет, мир", false},
		{"cjk prose", "你好世界", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PassThrough(tt.text); got != tt.want {
				t.Fatalf("PassThrough(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Span splitting
// ---------------------------------------------------------------------------

// reassemble concatenates the spans back; it must reproduce the input.
func reassemble(text string, spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		b.WriteString(text[sp.Start:sp.End])
	}
	return b.String()
}

func TestSplitSpansShortTextSingleSpan(t *testing.T) {
	text := "short paragraph"
	spans := SplitSpans(text, 100)
	if len(spans) != 1 || spans[0].Start != 0 || spans[0].End != len(text) {
		t.Fatalf("spans = %v, want one full span", spans)
	}
}

func TestSplitSpansEmpty(t *testing.T) {
	if spans := SplitSpans("", 100); spans != nil {
		t.Fatalf("SplitSpans(\"\") = %v, want nil", spans)
	}
}

func TestSplitSpansTileExactly(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Sentence number one goes here. Sentence number two goes here.\n\n")
	}
	text := b.String()

	spans := SplitSpans(text, 200)
	if len(spans) < 2 {
		t.Fatalf("expected multiple spans, got %d", len(spans))
	}
	if got := reassemble(text, spans); got != text {
		t.Fatal("concatenated spans do not reproduce the input")
	}

	// Spans must be adjacent and within budget.
	prev := 0
	for i, sp := range spans {
		if sp.Start != prev {
			t.Fatalf("span %d starts at %d, want %d", i, sp.Start, prev)
		}
		if n := utf8.RuneCountInString(text[sp.Start:sp.End]); n > 200 {
			t.Fatalf("span %d has %d runes, budget is 200", i, n)
		}
		prev = sp.End
	}
	if prev != len(text) {
		t.Fatalf("last span ends at %d, want %d", prev, len(text))
	}
}

func TestSplitSpansPrefersParagraphBoundary(t *testing.T) {
	text := "First paragraph line one.\n\nSecond paragraph is a fair bit longer than the first one."
	spans := SplitSpans(text, 40)
	if len(spans) < 2 {
		t.Fatalf("expected a split, got %v", spans)
	}
	// The first cut should land after the blank line, not mid-sentence.
	first := text[spans[0].Start:spans[0].End]
	if !strings.HasSuffix(first, "\n\n") {
		t.Fatalf("first span %q should end at the paragraph break", first)
	}
}

func TestSplitSpansSentenceBoundaryFallback(t *testing.T) {
	text := "One short sentence here. Another short sentence here. And a third one follows right after that."
	spans := SplitSpans(text, 60)
	first := text[spans[0].Start:spans[0].End]
	if !strings.Contains(first, ". ") {
		t.Fatalf("first span %q should end at a sentence boundary", first)
	}
	if got := reassemble(text, spans); got != text {
		t.Fatal("concatenated spans do not reproduce the input")
	}
}

func TestSplitSpansHardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 250)
	spans := SplitSpans(text, 100)
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if got := reassemble(text, spans); got != text {
		t.Fatal("concatenated spans do not reproduce the input")
	}
}

func TestSplitSpansMultibyteSafety(t *testing.T) {
	text := strings.Repeat("абвгд ежзий ", 50)
	spans := SplitSpans(text, 40)
	for i, sp := range spans {
		if !utf8.ValidString(text[sp.Start:sp.End]) {
			t.Fatalf("span %d cuts a multibyte rune", i)
		}
	}
	if got := reassemble(text, spans); got != text {
		t.Fatal("concatenated spans do not reproduce the input")
	}
}
