package document

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Status machine
// ---------------------------------------------------------------------------

func TestUnitStatusTransitions(t *testing.T) {
	u := &Unit{ID: "u1", SourceText: "hello", Translatable: true}

	if u.Status != StatusPending {
		t.Fatalf("new unit status = %v, want pending", u.Status)
	}
	if err := u.MarkInFlight(); err != nil {
		t.Fatalf("MarkInFlight from pending: %v", err)
	}
	if err := u.MarkDone("hallo"); err != nil {
		t.Fatalf("MarkDone from in-flight: %v", err)
	}
	if u.TranslatedText != "hallo" {
		t.Fatalf("TranslatedText = %q, want %q", u.TranslatedText, "hallo")
	}

	// Terminal states are final.
	if err := u.MarkInFlight(); err == nil {
		t.Fatal("MarkInFlight from done should fail")
	}
	if err := u.MarkFailed(); err == nil {
		t.Fatal("MarkFailed from done should fail")
	}
}

func TestUnitFailedAllowsExplicitRetry(t *testing.T) {
	u := &Unit{ID: "u1", Translatable: true}
	u.MarkInFlight()
	if err := u.MarkFailed(); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := u.MarkInFlight(); err != nil {
		t.Fatalf("retry from failed should be allowed: %v", err)
	}
}

func TestUnitOutputFallback(t *testing.T) {
	tests := []struct {
		name string
		unit Unit
		want string
	}{
		{"done uses translation", Unit{SourceText: "a", TranslatedText: "b", Status: StatusDone, Translatable: true}, "b"},
		{"failed keeps source", Unit{SourceText: "a", Status: StatusFailed, Translatable: true}, "a"},
		{"pending keeps source", Unit{SourceText: "a", Translatable: true}, "a"},
		{"pass-through keeps source", Unit{SourceText: "```go```", TranslatedText: "x", Status: StatusDone}, "```go```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.unit.Output(); got != tt.want {
				t.Fatalf("Output() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

func TestPageTerminalIgnoresPassThrough(t *testing.T) {
	p := &Page{Index: 0, Units: []*Unit{
		{ID: "a", Status: StatusDone, Translatable: true},
		{ID: "b", Status: StatusFailed, Translatable: true},
		{ID: "c", Status: StatusPending, Translatable: false},
	}}
	if !p.Terminal() {
		t.Fatal("page with terminal translatable units should be terminal")
	}

	p.Units = append(p.Units, &Unit{ID: "d", Status: StatusInFlight, Translatable: true})
	if p.Terminal() {
		t.Fatal("page with an in-flight unit must not be terminal")
	}
}

func TestPageCounts(t *testing.T) {
	p := &Page{Units: []*Unit{
		{Status: StatusDone, Translatable: true},
		{Status: StatusDone, Translatable: true},
		{Status: StatusFailed, Translatable: true},
		{Status: StatusDone, Translatable: false},
	}}
	done, failed := p.Counts()
	if done != 2 || failed != 1 {
		t.Fatalf("Counts() = (%d, %d), want (2, 1)", done, failed)
	}
}

func TestTranslatableCount(t *testing.T) {
	pages := []*Page{
		{Units: []*Unit{{Translatable: true}, {Translatable: false}}},
		{Units: []*Unit{{Translatable: true}, {Translatable: true}}},
	}
	if got := TranslatableCount(pages); got != 3 {
		t.Fatalf("TranslatableCount = %d, want 3", got)
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestParseErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ParseError{Path: "x.md", Reason: "bad front matter", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("ParseError should unwrap to the inner error")
	}
}

func TestJobStateTerminal(t *testing.T) {
	if StateRunning.Terminal() {
		t.Fatal("running must not be terminal")
	}
	for _, s := range []JobState{StateCompleted, StatePartialFailure, StateAborted} {
		if !s.Terminal() {
			t.Fatalf("%v should be terminal", s)
		}
	}
}
