package budget

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

func TestDefaultsApplied(t *testing.T) {
	m := NewManager(Budget{})
	cfg := m.Config()
	if cfg.Global != DefaultGlobal || cfg.PageConcurrency != DefaultPageConcurrency || cfg.PerPage != DefaultPerPage {
		t.Fatalf("Config() = %+v, want stock defaults", cfg)
	}
}

// ---------------------------------------------------------------------------
// Gates
// ---------------------------------------------------------------------------

func TestPageGateCaps(t *testing.T) {
	m := NewManager(Budget{Global: 10, PageConcurrency: 2, PerPage: 2})
	job := m.ForJob()
	ctx := context.Background()

	// Two page slots available, the third must block.
	if err := job.AcquirePage(ctx); err != nil {
		t.Fatal(err)
	}
	if err := job.AcquirePage(ctx); err != nil {
		t.Fatal(err)
	}
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := job.AcquirePage(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third AcquirePage = %v, want deadline exceeded", err)
	}

	job.ReleasePage()
	if err := job.AcquirePage(ctx); err != nil {
		t.Fatalf("AcquirePage after release: %v", err)
	}
}

func TestUnitGateCapsPerPage(t *testing.T) {
	m := NewManager(Budget{Global: 10, PageConcurrency: 4, PerPage: 2})
	page := m.ForJob().ForPage()
	ctx := context.Background()

	if err := page.AcquireUnit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := page.AcquireUnit(ctx); err != nil {
		t.Fatal(err)
	}
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := page.AcquireUnit(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third AcquireUnit = %v, want deadline exceeded", err)
	}

	page.ReleaseUnit()
	if err := page.AcquireUnit(ctx); err != nil {
		t.Fatalf("AcquireUnit after release: %v", err)
	}
}

func TestGlobalGateSharedAcrossPages(t *testing.T) {
	m := NewManager(Budget{Global: 2, PageConcurrency: 4, PerPage: 4})
	job := m.ForJob()
	a, b := job.ForPage(), job.ForPage()
	ctx := context.Background()

	if err := a.AcquireUnit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.AcquireUnit(ctx); err != nil {
		t.Fatal(err)
	}

	// Global cap of two is exhausted even though both page gates have room.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := a.AcquireUnit(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("over-global AcquireUnit = %v, want deadline exceeded", err)
	}

	b.ReleaseUnit()
	if err := a.AcquireUnit(ctx); err != nil {
		t.Fatalf("AcquireUnit after sibling release: %v", err)
	}
}

func TestAcquireUnitHoldsNothingOnCancel(t *testing.T) {
	m := NewManager(Budget{Global: 1, PageConcurrency: 2, PerPage: 2})
	job := m.ForJob()
	a, b := job.ForPage(), job.ForPage()
	ctx := context.Background()

	if err := a.AcquireUnit(ctx); err != nil {
		t.Fatal(err)
	}

	// b blocks on the global token and is cancelled; its unit token must be
	// returned, so a later acquire on b proceeds once global frees up.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := b.AcquireUnit(short); err == nil {
		t.Fatal("expected cancellation while waiting for the global gate")
	}

	a.ReleaseUnit()
	if err := b.AcquireUnit(ctx); err != nil {
		t.Fatalf("AcquireUnit after cancelled wait: %v", err)
	}
	b.ReleaseUnit()
}
