package session

import (
	"sync"
	"time"

	"github.com/talentbridge/livesession/internal/domain"
)

// DefaultReactionTTL is how long a reaction stays on screen.
const DefaultReactionTTL = 1200 * time.Millisecond

// ReactionQueue holds the ephemeral emoji overlay. Entries expire in
// arrival order, so one timer chained on the head entry is enough.
type ReactionQueue struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries []domain.Reaction
	timer   *time.Timer
	stopped bool
}

func NewReactionQueue(ttl time.Duration) *ReactionQueue {
	if ttl <= 0 {
		ttl = DefaultReactionTTL
	}
	return &ReactionQueue{ttl: ttl}
}

func (q *ReactionQueue) Push(r domain.Reaction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now()
	}
	q.entries = append(q.entries, r)
	if q.timer == nil {
		q.scheduleLocked()
	}
}

// scheduleLocked arms the timer for the head entry's expiry.
func (q *ReactionQueue) scheduleLocked() {
	if len(q.entries) == 0 {
		q.timer = nil
		return
	}
	wait := q.ttl - time.Since(q.entries[0].ReceivedAt)
	if wait < 0 {
		wait = 0
	}
	q.timer = time.AfterFunc(wait, q.evict)
}

func (q *ReactionQueue) evict() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	now := time.Now()
	i := 0
	for ; i < len(q.entries); i++ {
		if now.Sub(q.entries[i].ReceivedAt) < q.ttl {
			break
		}
	}
	q.entries = q.entries[i:]
	q.scheduleLocked()
}

// Active returns the reactions currently on screen, oldest first.
func (q *ReactionQueue) Active() []domain.Reaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Reaction, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *ReactionQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.entries = nil
}
