package server

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	rec := &JobRecord{
		ID:         "job-1",
		Filename:   "report.docx",
		Format:     "docx",
		TargetLang: "de",
		State:      "running",
		TotalUnits: 42,
		OutputPath: "/tmp/report_de.docx",
	}
	if err := store.Create(rec); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "report.docx" || got.Format != "docx" || got.TotalUnits != 42 {
		t.Fatalf("Get = %+v", got)
	}
	if got.State != "running" || got.CompletedAt != nil {
		t.Fatalf("fresh job = state %q, completed %v", got.State, got.CompletedAt)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}

	if _, err := store.Get("missing"); err == nil {
		t.Fatal("missing job should fail")
	}
}

func TestStoreProgressAndFinish(t *testing.T) {
	store := newTestStore(t)
	if err := store.Create(&JobRecord{ID: "job-2", Filename: "a.txt", TargetLang: "fr", State: "running", TotalUnits: 10}); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateProgress("job-2", 50, 4, 1); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("job-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress != 50 || got.DoneUnits != 4 || got.FailedUnits != 1 {
		t.Fatalf("after update = %+v", got)
	}

	if err := store.Finish("job-2", "partial-failure", "", "/tmp/a_fr.txt"); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get("job-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "partial-failure" || got.OutputPath != "/tmp/a_fr.txt" {
		t.Fatalf("after finish = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
}

func TestStoreReapInterrupted(t *testing.T) {
	store := newTestStore(t)
	if err := store.Create(&JobRecord{ID: "stale", Filename: "a.txt", TargetLang: "de", State: "running"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(&JobRecord{ID: "done", Filename: "b.txt", TargetLang: "de", State: "running"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Finish("done", "completed", "", "/tmp/b_de.txt"); err != nil {
		t.Fatal(err)
	}

	n, err := store.ReapInterrupted()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reaped = %d, want 1", n)
	}
	got, err := store.Get("stale")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "aborted" || got.Error == "" || got.CompletedAt == nil {
		t.Fatalf("stale job = %+v", got)
	}
	if got, _ := store.Get("done"); got.State != "completed" {
		t.Fatalf("finished job touched: %+v", got)
	}
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"one", "two", "three"} {
		if err := store.Create(&JobRecord{ID: id, Filename: id + ".txt", TargetLang: "de", State: "running"}); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := store.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("List(2) = %d records", len(jobs))
	}

	jobs, err = store.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("List(0) = %d records, want all 3", len(jobs))
	}
}
