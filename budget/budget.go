// Package budget implements the three-level worker budget that bounds
// concurrent provider calls: a process-wide global gate shared by all jobs,
// a per-job page gate, and a per-page unit gate.
//
// Each level is an independent weighted semaphore, so the caps are
// verifiable per level:
//
//	Σ in-flight units across the process ≤ Global
//	Σ pages in flight within one job    ≤ PageConcurrency
//	Σ in-flight units within one page   ≤ PerPage
//
// A unit is admitted by taking one token from its page's unit gate and one
// from the global gate; both are released when the unit reaches a terminal
// status. Waiters queue FIFO inside semaphore.Weighted, so a single large
// page cannot starve other jobs beyond the global cap.
package budget

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Defaults mirror the engine's stock configuration.
const (
	DefaultGlobal          = 256
	DefaultPageConcurrency = 16
	DefaultPerPage         = 64
)

// Budget holds the three capacity levels.
type Budget struct {
	// Global caps in-flight units across every concurrent job.
	Global int
	// PageConcurrency caps pages of one job processed simultaneously.
	PageConcurrency int
	// PerPage caps in-flight units of one page.
	PerPage int
}

// withDefaults fills zero or negative fields with the stock values.
func (b Budget) withDefaults() Budget {
	if b.Global <= 0 {
		b.Global = DefaultGlobal
	}
	if b.PageConcurrency <= 0 {
		b.PageConcurrency = DefaultPageConcurrency
	}
	if b.PerPage <= 0 {
		b.PerPage = DefaultPerPage
	}
	return b
}

// ---------------------------------------------------------------------------
// Manager (global level)
// ---------------------------------------------------------------------------

// Manager owns the global gate. One Manager is shared by all jobs of a
// process; it is the only cross-job shared mutable state in the engine.
type Manager struct {
	cfg    Budget
	global *semaphore.Weighted
}

// NewManager creates a manager for the given budget, applying defaults to
// unset fields.
func NewManager(cfg Budget) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:    cfg,
		global: semaphore.NewWeighted(int64(cfg.Global)),
	}
}

// Config returns the effective budget after defaulting.
func (m *Manager) Config() Budget { return m.cfg }

// ForJob creates the page-level gate for one job.
func (m *Manager) ForJob() *JobGate {
	return &JobGate{
		mgr:   m,
		pages: semaphore.NewWeighted(int64(m.cfg.PageConcurrency)),
	}
}

// ---------------------------------------------------------------------------
// JobGate (page level)
// ---------------------------------------------------------------------------

// JobGate admits pages of a single job.
type JobGate struct {
	mgr   *Manager
	pages *semaphore.Weighted
}

// AcquirePage blocks until a page slot is free or ctx is done.
func (g *JobGate) AcquirePage(ctx context.Context) error {
	return g.pages.Acquire(ctx, 1)
}

// ReleasePage frees a page slot, unblocking the next queued page.
func (g *JobGate) ReleasePage() {
	g.pages.Release(1)
}

// ForPage creates the unit-level gate for one admitted page.
func (g *JobGate) ForPage() *PageGate {
	return &PageGate{
		mgr:   g.mgr,
		units: semaphore.NewWeighted(int64(g.mgr.cfg.PerPage)),
	}
}

// ---------------------------------------------------------------------------
// PageGate (unit level)
// ---------------------------------------------------------------------------

// PageGate admits units of a single page. The unit token is taken before
// the global token so that a saturated global gate never holds page-local
// tokens hostage for units that cannot run anyway.
type PageGate struct {
	mgr   *Manager
	units *semaphore.Weighted
}

// AcquireUnit blocks until both a unit token and a global token are
// available, or ctx is done. On a context error no tokens are held.
func (p *PageGate) AcquireUnit(ctx context.Context) error {
	if err := p.units.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := p.mgr.global.Acquire(ctx, 1); err != nil {
		p.units.Release(1)
		return err
	}
	return nil
}

// ReleaseUnit frees both tokens taken by AcquireUnit.
func (p *PageGate) ReleaseUnit() {
	p.mgr.global.Release(1)
	p.units.Release(1)
}
