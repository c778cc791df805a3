// Package document defines the shared data model of the translation engine:
// translatable units, pages (the batch unit of page-level concurrency), and
// the terminal job states.
//
// Units and pages are created once, at parse time, by a format adapter.
// After that only the scheduler mutates them (status, attempts) and only the
// translation path writes TranslatedText. The status machine moves forward
// only: Pending → InFlight → Done|Failed. A Failed unit may re-enter
// InFlight solely through an explicit retry.
package document

import "fmt"

// ---------------------------------------------------------------------------
// Unit status
// ---------------------------------------------------------------------------

// Status is the lifecycle state of a single translatable unit.
type Status int

const (
	StatusPending Status = iota
	StatusInFlight
	StatusDone
	StatusFailed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in-flight"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status is final for the unit.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ---------------------------------------------------------------------------
// Unit
// ---------------------------------------------------------------------------

// Unit is the smallest translatable span of text, tied to its structural
// position by an opaque anchor that only the owning adapter interprets
// (e.g. "p:12/r:3", "slide:2/p:0/r:1", "sec:4", "blk:17").
type Unit struct {
	// ID identifies the unit within its job.
	ID string
	// Anchor locates the unit inside the adapter's structural model.
	Anchor string
	// SourceText is the original text of the unit.
	SourceText string
	// TranslatedText is set when the unit reaches StatusDone. For a failed
	// unit it stays empty and Output() falls back to SourceText.
	TranslatedText string
	// Status is the current lifecycle state.
	Status Status
	// Attempts counts provider calls made for this unit.
	Attempts int
	// Translatable is false for pass-through spans (code fences, formulas,
	// numeric-only content). Such units never reach the provider.
	Translatable bool
}

// MarkInFlight transitions the unit from Pending (or Failed, on an explicit
// retry) to InFlight. Any other transition is a programming error.
func (u *Unit) MarkInFlight() error {
	if u.Status != StatusPending && u.Status != StatusFailed {
		return fmt.Errorf("unit %s: cannot enter in-flight from %s", u.ID, u.Status)
	}
	u.Status = StatusInFlight
	return nil
}

// MarkDone records the translated text and moves the unit to Done.
func (u *Unit) MarkDone(translated string) error {
	if u.Status.Terminal() {
		return fmt.Errorf("unit %s: cannot complete from %s", u.ID, u.Status)
	}
	u.TranslatedText = translated
	u.Status = StatusDone
	return nil
}

// MarkFailed moves the unit to Failed after its retries are exhausted.
func (u *Unit) MarkFailed() error {
	if u.Status.Terminal() {
		return fmt.Errorf("unit %s: cannot fail from %s", u.ID, u.Status)
	}
	u.Status = StatusFailed
	return nil
}

// Output returns the text to write back at the unit's anchor: the
// translation when available, the source text otherwise (pass-through spans
// and failed units fall back to the original).
func (u *Unit) Output() string {
	if u.Status == StatusDone && u.Translatable {
		return u.TranslatedText
	}
	return u.SourceText
}

// ---------------------------------------------------------------------------
// Page
// ---------------------------------------------------------------------------

// Page is an ordered group of units sharing one structural container: a
// document page, a slide, a markdown section, or a block batch for formats
// without native pages. Pages are the granularity of page-level concurrency.
type Page struct {
	// Index is the zero-based position of the page in the document.
	Index int
	// Units holds the page's units in document order.
	Units []*Unit
}

// Terminal reports whether every unit of the page reached a final status.
// Pass-through units count as terminal from the start.
func (p *Page) Terminal() bool {
	for _, u := range p.Units {
		if u.Translatable && !u.Status.Terminal() {
			return false
		}
	}
	return true
}

// Counts returns how many translatable units are done and failed.
func (p *Page) Counts() (done, failed int) {
	for _, u := range p.Units {
		if !u.Translatable {
			continue
		}
		switch u.Status {
		case StatusDone:
			done++
		case StatusFailed:
			failed++
		}
	}
	return done, failed
}

// TranslatableCount returns the number of units that will be sent to the
// provider.
func TranslatableCount(pages []*Page) int {
	n := 0
	for _, p := range pages {
		for _, u := range p.Units {
			if u.Translatable {
				n++
			}
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Structural model
// ---------------------------------------------------------------------------

// Model is the adapter-private structural model produced by Parse and
// consumed by Reassemble. The engine carries it opaquely.
type Model any

// ---------------------------------------------------------------------------
// Job state
// ---------------------------------------------------------------------------

// JobState is the overall state of a document translation job.
type JobState int

const (
	StateRunning JobState = iota
	StateCompleted
	StatePartialFailure
	StateAborted
)

// String returns the lowercase state name.
func (s JobState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StatePartialFailure:
		return "partial-failure"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the job state is final.
func (s JobState) Terminal() bool {
	return s != StateRunning
}
