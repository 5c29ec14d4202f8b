package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/encodeous/trellis/state"
)

// IPCGet fetches the rendered topology from a running controller's debug address
func IPCGet(ctx context.Context, addr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/debug/topology", addr), nil)
	if err != nil {
		return "", err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inspect failed: %s: %s", res.Status, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func writeSection(sb *strings.Builder, title string, rows []string) {
	sb.WriteString(title + ":\n")
	if len(rows) == 0 {
		rows = append(rows, "    (none)")
	}
	slices.Sort(rows)
	sb.WriteString(strings.Join(rows, "\n") + "\n\n")
}

// RenderSnapshot formats a topology snapshot for humans
func RenderSnapshot(snap TopologySnapshot) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Generation: %d\n\n", snap.Generation))

	rt := make([]string, 0)
	for _, sw := range snap.Switches {
		rt = append(rt, fmt.Sprintf(" - %s", sw))
	}
	writeSection(&sb, "Switches", rt)

	allowed := make([]string, 0)
	forbidden := make([]string, 0)
	toAdd := make([]string, 0)
	toRemove := make([]string, 0)
	for _, e := range snap.Edges {
		age := snap.Taken.Sub(e.LastSeen).Round(time.Millisecond)
		row := fmt.Sprintf(" - %s seen %s ago, entries=%t", e.Link.Canonical(), age, e.HasEntry)
		if e.Allowed {
			allowed = append(allowed, row)
		} else {
			forbidden = append(forbidden, row)
		}
		edge := state.Edge{Allowed: e.Allowed, HasEntry: e.HasEntry}
		switch ClassifyEntry(&edge) {
		case EntryAdd:
			toAdd = append(toAdd, fmt.Sprintf(" - %s", e.Link.Canonical()))
		case EntryRemove:
			toRemove = append(toRemove, fmt.Sprintf(" - %s", e.Link.Canonical()))
		}
	}
	writeSection(&sb, "Allowed Links", allowed)
	writeSection(&sb, "Forbidden Links", forbidden)
	writeSection(&sb, "Entries To Add", toAdd)
	writeSection(&sb, "Entries To Remove", toRemove)
	return sb.String()
}

// HandleTopology serves the rendered snapshot of t
func HandleTopology(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, RenderSnapshot(t.Snapshot()))
	}
}

// Streams tracks running event streams. Once closed it refuses new ones.
type Streams struct {
	mu     sync.Mutex
	closed bool
	active sync.WaitGroup
}

func (s *Streams) add() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active.Add(1)
	return true
}

// CloseAndWait refuses new streams and waits for the running ones to end
func (s *Streams) CloseAndWait() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.active.Wait()
}

// HandleEvents streams one line per topology change until the client goes away
func HandleEvents(trace *TopologyTrace, streams *Streams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !streams.add() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer streams.active.Done()
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		ch := make(chan interface{}, 16)
		trace.Register(ch)
		defer trace.Unregister(ch)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				change, ok := msg.(TopologyChange)
				if !ok {
					continue
				}
				_, err := fmt.Fprintf(w, "gen=%d allowed=%d forbidden=%d to_add=%d to_remove=%d\n",
					change.Generation, len(change.Allowed), len(change.Forbidden), len(change.ToAdd), len(change.ToRemove))
				if err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
