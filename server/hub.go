package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glotdoc/glotdoc/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressEvent is the wire shape pushed to websocket subscribers.
type progressEvent struct {
	JobID       string  `json:"job_id"`
	State       string  `json:"state"`
	Percent     float64 `json:"percent"`
	DonePages   int     `json:"done_pages"`
	TotalPages  int     `json:"total_pages"`
	DoneUnits   int     `json:"done_units"`
	FailedUnits int     `json:"failed_units"`
	TotalUnits  int     `json:"total_units"`
}

// hub fans one job's progress snapshots out to its websocket subscribers.
// Slow subscribers drop intermediate snapshots rather than stalling the
// workers; monotonic counters make every retained snapshot self-contained.
type hub struct {
	jobID string

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	last   progressEvent
	closed bool
}

type subscriber struct {
	ch chan progressEvent
}

func newHub(jobID string) *hub {
	return &hub{
		jobID: jobID,
		subs:  make(map[*subscriber]struct{}),
	}
}

// publish pushes a snapshot to every subscriber, dropping it for
// subscribers whose buffer is full.
func (h *hub) publish(state string, p engine.Progress) {
	ev := progressEvent{
		JobID:       h.jobID,
		State:       state,
		Percent:     p.Percent(),
		DonePages:   p.DonePages,
		TotalPages:  p.TotalPages,
		DoneUnits:   p.DoneUnits,
		FailedUnits: p.FailedUnits,
		TotalUnits:  p.TotalUnits,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = ev
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// close detaches all subscribers after a final snapshot was published.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
	}
	h.subs = make(map[*subscriber]struct{})
}

// subscribe registers a new subscriber and replays the latest snapshot.
// Returns nil if the hub already closed.
func (h *hub) subscribe() *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	s := &subscriber{ch: make(chan progressEvent, 16)}
	h.subs[s] = struct{}{}
	if h.last.JobID != "" {
		s.ch <- h.last
	}
	return s
}

func (h *hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// serveWS upgrades the connection and streams progress events until the
// job finishes or the client goes away.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.subscribe()
	if sub == nil {
		// Job already terminal: send the last snapshot and close.
		h.mu.Lock()
		last := h.last
		h.mu.Unlock()
		if last.JobID != "" {
			conn.WriteJSON(last)
		}
		return
	}
	defer h.unsubscribe(sub)

	// Drain client reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for ev := range sub.ch {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
