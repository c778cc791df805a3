// Package engine orchestrates document translation jobs: it routes the
// input through a format adapter, schedules unit translation under the
// three-level worker budget, aggregates monotonic progress, and reassembles
// the output once every page is terminal.
//
// One Engine serves many concurrent jobs; the global level of the worker
// budget is the only state they share.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glotdoc/glotdoc/budget"
	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/provider"
	"github.com/glotdoc/glotdoc/transcache"
)

// Options configures an Engine.
type Options struct {
	// Budget caps the worker pools; zero fields apply the stock defaults.
	Budget budget.Budget
	// Cache, when set, answers repeated units without provider calls and
	// records finished translations.
	Cache *transcache.Cache
	// UnitTimeout bounds one unit's whole translate call, retries included.
	// Zero means no engine-level bound (the provider client still applies
	// its per-request timeout).
	UnitTimeout time.Duration
	// JobTimeout bounds the whole job. Zero means none.
	JobTimeout time.Duration
	// Logger receives job lifecycle events. Nil uses slog.Default().
	Logger *slog.Logger
}

// Engine is the job orchestrator.
type Engine struct {
	formats *format.Registry
	client  provider.Client
	budget  *budget.Manager
	opts    Options
	log     *slog.Logger
}

// New creates an engine translating through the given provider client.
func New(formats *format.Registry, client provider.Client, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		formats: formats,
		client:  client,
		budget:  budget.NewManager(opts.Budget),
		opts:    opts,
		log:     log,
	}
}

// Request describes one translation job.
type Request struct {
	// InputPath is the document to translate.
	InputPath string
	// OutputPath is where the translated document is written. Nothing is
	// written when the job aborts.
	OutputPath string
	// TargetLang is the target language code or name.
	TargetLang string
	// SourceLang is the source language, empty for auto-detection.
	SourceLang string
	// OnProgress, when set, receives every monotonic progress snapshot.
	// It is called from worker goroutines and must be fast.
	OnProgress func(Progress)
}

// Result is the terminal outcome of a job.
type Result struct {
	// OutputPath is set when an output document was written.
	OutputPath string
	// State is Completed, PartialFailure, or Aborted.
	State document.JobState
	// FailedUnits lists the anchors whose units kept their source text.
	FailedUnits []string
	// Err carries the abort cause; nil for Completed and PartialFailure.
	Err error
}

// Handle is the caller's view of a submitted job.
type Handle struct {
	// ID identifies the job.
	ID string

	tracker *tracker
	cancel  context.CancelCauseFunc
	done    chan struct{}

	mu     sync.Mutex
	result Result
}

// Progress returns the latest monotonic snapshot.
func (h *Handle) Progress() Progress {
	return h.tracker.snapshot()
}

// Cancel aborts the job. In-flight provider calls are interrupted, workers
// drain, and the job terminates as Aborted without writing output.
func (h *Handle) Cancel() {
	h.cancel(document.ErrJobCancelled)
}

// Await blocks until the job is terminal or ctx fires.
func (h *Handle) Await(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (h *Handle) finish(r Result) {
	h.mu.Lock()
	h.result = r
	h.mu.Unlock()
	close(h.done)
}

// Submit parses the input synchronously and starts the translation job.
// Detection and parse failures are returned immediately; everything after
// that is reported through the returned handle.
func (e *Engine) Submit(ctx context.Context, req Request) (*Handle, error) {
	kind, err := format.Detect(req.InputPath)
	if err != nil {
		return nil, err
	}
	adapter, ok := e.formats.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%s: no adapter for %s: %w",
			req.InputPath, kind, document.ErrUnsupportedFormat)
	}
	model, pages, err := adapter.Parse(req.InputPath)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancelCause(ctx)

	h := &Handle{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.tracker = newTracker(len(pages), document.TranslatableCount(pages), req.OnProgress)

	e.log.Info("job submitted",
		"job", h.ID,
		"input", req.InputPath,
		"format", kind.String(),
		"pages", len(pages),
		"units", h.tracker.snapshot().TotalUnits,
		"target", req.TargetLang)

	go e.run(jobCtx, h, req, adapter, model, pages)
	return h, nil
}
