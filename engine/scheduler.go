package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glotdoc/glotdoc/budget"
	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/provider"
)

// run drives a job to its terminal state. It owns the pages exclusively:
// adapters created them, and from here on only scheduler goroutines touch
// unit status.
func (e *Engine) run(ctx context.Context, h *Handle, req Request,
	adapter format.Adapter, model document.Model, pages []*document.Page) {

	start := time.Now()
	if e.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.JobTimeout)
		defer cancel()
	}

	err := e.translatePages(ctx, h, req, pages)
	if err != nil {
		cause := context.Cause(ctx)
		if cause == nil || errors.Is(cause, context.Canceled) {
			cause = err
		}
		e.log.Warn("job aborted", "job", h.ID, "elapsed", time.Since(start), "err", cause)
		h.finish(Result{State: document.StateAborted, Err: cause})
		return
	}

	res := e.assemble(h, req, adapter, model, pages)
	e.log.Info("job finished",
		"job", h.ID,
		"state", res.State.String(),
		"failed_units", len(res.FailedUnits),
		"elapsed", time.Since(start))
	h.finish(res)
}

// translatePages schedules every translatable unit under the three-level
// budget. A nil return means every unit is terminal; an error means the job
// aborted and pages may hold non-terminal units.
func (e *Engine) translatePages(ctx context.Context, h *Handle, req Request, pages []*document.Page) error {
	jobGate := e.budget.ForJob()

	g, ctx := errgroup.WithContext(ctx)
	for _, page := range pages {
		page := page
		g.Go(func() error {
			if err := jobGate.AcquirePage(ctx); err != nil {
				return err
			}
			defer jobGate.ReleasePage()

			if err := e.translatePage(ctx, h, req, jobGate.ForPage(), page); err != nil {
				return err
			}
			h.tracker.pageDone()
			return nil
		})
	}
	return g.Wait()
}

// translatePage dispatches one admitted page's units. Dispatch width is not
// pre-divided across pages: every unit goroutine queues on the gates, so
// whatever the global gate can spare flows to whichever page has work.
func (e *Engine) translatePage(ctx context.Context, h *Handle, req Request,
	gate *budget.PageGate, page *document.Page) error {

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.budget.Config().PerPage)
	for _, unit := range page.Units {
		if !unit.Translatable {
			continue
		}

		// Cache hits never consume budget tokens.
		if e.opts.Cache != nil {
			if text, ok := e.opts.Cache.Get(req.TargetLang, unit.SourceText); ok {
				unit.MarkInFlight()
				unit.MarkDone(text)
				h.tracker.unitDone()
				continue
			}
		}

		unit := unit
		g.Go(func() error {
			if err := gate.AcquireUnit(ctx); err != nil {
				return err
			}
			defer gate.ReleaseUnit()
			return e.translateUnit(ctx, h, req, page, unit)
		})
	}
	return g.Wait()
}

// translateUnit performs one unit's provider call. Exhausted retries fail
// the unit and let the job continue; a fatal provider error propagates and
// aborts the job.
func (e *Engine) translateUnit(ctx context.Context, h *Handle, req Request,
	page *document.Page, unit *document.Unit) error {

	if err := unit.MarkInFlight(); err != nil {
		return err
	}

	callCtx := ctx
	if e.opts.UnitTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.UnitTimeout)
		defer cancel()
	}

	resp, err := e.client.Translate(callCtx, provider.Request{
		Text:       unit.SourceText,
		TargetLang: req.TargetLang,
		SourceLang: req.SourceLang,
	})
	unit.Attempts = resp.Attempts

	if err == nil {
		unit.MarkDone(resp.Text)
		if e.opts.Cache != nil {
			e.opts.Cache.Put(req.TargetLang, unit.SourceText, resp.Text)
		}
		h.tracker.unitDone()
		return nil
	}

	// Job-level stop: the whole group is winding down.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if perr, ok := provider.AsError(err); ok && perr.Fatal() {
		unit.MarkFailed()
		h.tracker.unitFailed()
		return fmt.Errorf("page %d unit %s: %w", page.Index, unit.ID, err)
	}

	// Exhausted retries, a permanent per-unit failure, or the unit-level
	// timeout: the unit keeps its source text and the job continues.
	e.log.Warn("unit failed",
		"job", h.ID,
		"page", page.Index,
		"anchor", unit.Anchor,
		"attempts", unit.Attempts,
		"err", err)
	unit.MarkFailed()
	h.tracker.unitFailed()
	return nil
}

// assemble reassembles the translated document and writes the output. An
// anchor failure degrades the affected page to its source text instead of
// aborting; any other failure aborts without writing.
func (e *Engine) assemble(h *Handle, req Request, adapter format.Adapter,
	model document.Model, pages []*document.Page) Result {

	failed := failedAnchors(pages)

	var data []byte
	var err error
	reverted := make(map[int]bool)
	for {
		data, err = adapter.Reassemble(model, pages)
		if err == nil {
			break
		}
		var aerr *document.AssemblyError
		if errors.As(err, &aerr) && !reverted[aerr.Page] && revertPage(pages, aerr.Page, &failed) {
			reverted[aerr.Page] = true
			e.log.Warn("page degraded to source text", "job", h.ID, "page", aerr.Page, "err", err)
			continue
		}
		return Result{State: document.StateAborted, Err: err}
	}

	if err := os.WriteFile(req.OutputPath, data, 0644); err != nil {
		return Result{State: document.StateAborted, Err: fmt.Errorf("writing output: %w", err)}
	}

	if e.opts.Cache != nil {
		if err := e.opts.Cache.Save(); err != nil {
			e.log.Warn("saving translation cache", "job", h.ID, "err", err)
		}
	}

	state := document.StateCompleted
	if len(failed) > 0 {
		state = document.StatePartialFailure
	}
	return Result{OutputPath: req.OutputPath, State: state, FailedUnits: failed}
}

// failedAnchors lists the anchors of failed translatable units.
func failedAnchors(pages []*document.Page) []string {
	var anchors []string
	for _, p := range pages {
		for _, u := range p.Units {
			if u.Translatable && u.Status == document.StatusFailed {
				anchors = append(anchors, u.Anchor)
			}
		}
	}
	return anchors
}

// revertPage drops the translations of one page so its units write back
// their source text. Returns false only when the page index is unknown;
// a page whose translations already equal the source still counts as
// reverted, the caller's per-page bookkeeping stops the retry loop.
func revertPage(pages []*document.Page, index int, failed *[]string) bool {
	for _, p := range pages {
		if p.Index != index {
			continue
		}
		for _, u := range p.Units {
			if u.Translatable && u.Status == document.StatusDone {
				u.TranslatedText = u.SourceText
				*failed = append(*failed, u.Anchor)
			}
		}
		return true
	}
	return false
}
