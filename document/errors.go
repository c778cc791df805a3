package document

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when no adapter recognizes the input
// file's extension or content.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrJobCancelled is reported by a job whose cancellation signal fired
// before it reached a natural terminal state.
var ErrJobCancelled = errors.New("job cancelled")

// ParseError reports malformed input. It is fatal for the job: no units are
// created and nothing is written.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AssemblyError reports a missing or corrupt anchor during reassembly.
// It is fatal for the affected page only: the page keeps its source text
// and the job degrades to PartialFailure instead of aborting.
type AssemblyError struct {
	Page   int
	Anchor string
	Reason string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembling page %d: anchor %q: %s", e.Page, e.Anchor, e.Reason)
}
