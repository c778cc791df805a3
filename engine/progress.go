package engine

import "sync"

// Progress is a monotonic snapshot of a running job. Counters only grow;
// consumers may rely on DoneUnits+FailedUnits never exceeding TotalUnits
// and on DoneUnits+FailedUnits == TotalUnits at job completion.
type Progress struct {
	TotalPages  int
	DonePages   int
	TotalUnits  int
	DoneUnits   int
	FailedUnits int
}

// Percent returns overall completion in [0,100]. Failed units count as
// processed: a job that ends in partial failure still reaches 100.
func (p Progress) Percent() float64 {
	if p.TotalUnits == 0 {
		return 100
	}
	return float64(p.DoneUnits+p.FailedUnits) / float64(p.TotalUnits) * 100
}

// tracker aggregates unit completions from concurrent workers into
// monotonic snapshots and fans them out to the job's callback.
type tracker struct {
	mu sync.Mutex
	p  Progress
	cb func(Progress)
}

func newTracker(totalPages, totalUnits int, cb func(Progress)) *tracker {
	return &tracker{
		p:  Progress{TotalPages: totalPages, TotalUnits: totalUnits},
		cb: cb,
	}
}

func (t *tracker) unitDone() {
	t.mu.Lock()
	t.p.DoneUnits++
	snap := t.p
	t.mu.Unlock()
	t.emit(snap)
}

func (t *tracker) unitFailed() {
	t.mu.Lock()
	t.p.FailedUnits++
	snap := t.p
	t.mu.Unlock()
	t.emit(snap)
}

func (t *tracker) pageDone() {
	t.mu.Lock()
	t.p.DonePages++
	snap := t.p
	t.mu.Unlock()
	t.emit(snap)
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p
}

func (t *tracker) emit(snap Progress) {
	if t.cb != nil {
		t.cb(snap)
	}
}
