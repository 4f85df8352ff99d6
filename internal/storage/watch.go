package storage

import (
	"context"
	"sort"

	"github.com/jbweber/virtfleet/internal/event"
)

// Watcher synthesizes pool lifecycle events by comparing pool statuses
// between polls. Only one goroutine may call Poll.
type Watcher struct {
	manager *Manager
	last    map[string]PoolStatus
}

// NewWatcher takes the baseline snapshot. Changes made after NewWatcher
// returns are reported by the next Poll.
func (m *Manager) NewWatcher(ctx context.Context) (*Watcher, error) {
	last, err := m.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	return &Watcher{manager: m, last: last}, nil
}

// Poll takes a new snapshot and returns the events leading from the
// previous one to it. On error the baseline is kept.
func (w *Watcher) Poll(ctx context.Context) ([]event.PoolLifecycle, error) {
	next, err := w.manager.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	events := Diff(w.last, next)
	w.last = next
	return events, nil
}

// Diff returns the lifecycle events that turn prev into next, ordered by
// pool id:
//   - new pool: defined if persistent, then started if active
//   - pool gone: stopped if it was active, then undefined
//   - active flag flipped: started or stopped
func Diff(prev, next map[string]PoolStatus) []event.PoolLifecycle {
	ids := make([]string, 0, len(prev)+len(next))
	for id := range prev {
		ids = append(ids, id)
	}
	for id := range next {
		if _, ok := prev[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []event.PoolLifecycle
	emit := func(s PoolStatus, t event.PoolLifecycleType) {
		out = append(out, event.PoolLifecycle{PoolID: s.ID, Name: s.Name, Type: t})
	}

	for _, id := range ids {
		before, had := prev[id]
		after, has := next[id]

		switch {
		case !had:
			if after.Persistent {
				emit(after, event.PoolDefined)
			}
			if after.Active {
				emit(after, event.PoolStarted)
			}
		case !has:
			if before.Active {
				emit(before, event.PoolStopped)
			}
			emit(before, event.PoolUndefined)
		case before.Active && !after.Active:
			emit(after, event.PoolStopped)
		case !before.Active && after.Active:
			emit(after, event.PoolStarted)
		}
	}

	return out
}
