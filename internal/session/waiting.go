package session

import (
	"sync"

	"github.com/talentbridge/livesession/internal/domain"
)

// Roster is the ordered in-meeting participant list. Waiting and
// in-meeting are disjoint partitions; an entry moves between them at most
// once per join attempt.
type Roster struct {
	mu      sync.Mutex
	order   []domain.ParticipantID
	entries map[domain.ParticipantID]domain.ParticipantEntry
}

func NewRoster() *Roster {
	return &Roster{entries: make(map[domain.ParticipantID]domain.ParticipantEntry)}
}

func (r *Roster) Add(e domain.ParticipantEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; ok {
		return
	}
	r.entries[e.ID] = e
	r.order = append(r.order, e.ID)
}

func (r *Roster) Remove(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Roster) Contains(id domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

func (r *Roster) Snapshot() []domain.ParticipantEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ParticipantEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// WaitingRoom holds join requests pending the host's decision, plus the
// multi-select set for bulk admit/deny.
type WaitingRoom struct {
	mu       sync.Mutex
	order    []domain.ParticipantID
	entries  map[domain.ParticipantID]domain.ParticipantEntry
	selected map[domain.ParticipantID]struct{}
	roster   *Roster
}

func NewWaitingRoom(roster *Roster) *WaitingRoom {
	return &WaitingRoom{
		entries:  make(map[domain.ParticipantID]domain.ParticipantEntry),
		selected: make(map[domain.ParticipantID]struct{}),
		roster:   roster,
	}
}

// Add registers a join request. Each request is a fresh entry: a re-join
// arrives under a new id, so duplicates by id are dropped.
func (w *WaitingRoom) Add(e domain.ParticipantEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entries[e.ID]; ok {
		return
	}
	e.Membership = domain.MembershipWaiting
	w.entries[e.ID] = e
	w.order = append(w.order, e.ID)
}

// AdmitOne moves the entry from the waiting partition to the roster.
// Returns the admitted entry, or false when the id is not waiting (already
// decided, or never requested).
func (w *WaitingRoom) AdmitOne(id domain.ParticipantID) (domain.ParticipantEntry, bool) {
	w.mu.Lock()
	e, ok := w.takeLocked(id)
	w.mu.Unlock()
	if !ok {
		return domain.ParticipantEntry{}, false
	}
	e.Membership = domain.MembershipAdmitted
	w.roster.Add(e)
	return e, true
}

// DenyOne removes the entry from the waiting partition without admitting.
func (w *WaitingRoom) DenyOne(id domain.ParticipantID) (domain.ParticipantEntry, bool) {
	w.mu.Lock()
	e, ok := w.takeLocked(id)
	w.mu.Unlock()
	if !ok {
		return domain.ParticipantEntry{}, false
	}
	e.Membership = domain.MembershipDenied
	return e, true
}

func (w *WaitingRoom) takeLocked(id domain.ParticipantID) (domain.ParticipantEntry, bool) {
	e, ok := w.entries[id]
	if !ok {
		return domain.ParticipantEntry{}, false
	}
	delete(w.entries, id)
	delete(w.selected, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return e, true
}

// ToggleSelect flips an id in the bulk-action selection.
func (w *WaitingRoom) ToggleSelect(id domain.ParticipantID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entries[id]; !ok {
		return
	}
	if _, ok := w.selected[id]; ok {
		delete(w.selected, id)
	} else {
		w.selected[id] = struct{}{}
	}
}

// AdmitSelected admits every selected entry and clears the selection.
// Ids that were already decided are skipped, so a duplicate in the bulk
// path cannot admit twice.
func (w *WaitingRoom) AdmitSelected() []domain.ParticipantEntry {
	return w.decideSelected(w.AdmitOne)
}

// DenySelected denies every selected entry and clears the selection.
func (w *WaitingRoom) DenySelected() []domain.ParticipantEntry {
	return w.decideSelected(w.DenyOne)
}

func (w *WaitingRoom) decideSelected(
	decide func(domain.ParticipantID) (domain.ParticipantEntry, bool),
) []domain.ParticipantEntry {
	w.mu.Lock()
	ids := make([]domain.ParticipantID, 0, len(w.selected))
	for id := range w.selected {
		ids = append(ids, id)
	}
	w.selected = make(map[domain.ParticipantID]struct{})
	w.mu.Unlock()

	out := make([]domain.ParticipantEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := decide(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// Waiting returns the pending entries in arrival order.
func (w *WaitingRoom) Waiting() []domain.ParticipantEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.ParticipantEntry, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.entries[id])
	}
	return out
}

func (w *WaitingRoom) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}
