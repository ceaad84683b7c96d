package relay

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var errBackpressure = errors.New("backpressure")

// member is one connected participant: identity plus its send queue.
type member struct {
	id       string
	username string
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func newMember(id string) *member {
	return &member{id: id, send: make(chan []byte, 32)}
}

// trySend queues a frame without blocking; a full queue drops the frame.
func (m *member) trySend(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	select {
	case m.send <- frame:
	default:
		return errBackpressure
	}
	return nil
}

func (m *member) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.send)
}

// room partitions members into admitted and waiting. The first announced
// joiner becomes the host and receives admission traffic.
type room struct {
	id string

	mu      sync.Mutex
	host    *member
	members map[string]*member
	waiting map[string]*member
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		members: make(map[string]*member),
		waiting: make(map[string]*member),
	}
}

// announce adds a directly-joining member; the first becomes host.
func (r *room) announce(m *member) (isHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.id] = m
	if r.host == nil {
		r.host = m
		return true
	}
	return false
}

func (r *room) requestJoin(m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting[m.id] = m
}

// admit moves a waiting member in. Returns false when the id is unknown
// (already decided or disconnected).
func (r *room) admit(id string) (*member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.waiting[id]
	if !ok {
		return nil, false
	}
	delete(r.waiting, id)
	r.members[id] = m
	return m, true
}

func (r *room) deny(id string) (*member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.waiting[id]
	if !ok {
		return nil, false
	}
	delete(r.waiting, id)
	return m, true
}

func (r *room) hostMember() *member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

// lookup resolves a routing target: "host" or a member id (waiting
// members included, so negotiation can start right after admission).
func (r *room) lookup(target string) (*member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == "host" {
		if r.host == nil {
			return nil, false
		}
		return r.host, true
	}
	if m, ok := r.members[target]; ok {
		return m, true
	}
	m, ok := r.waiting[target]
	return m, ok
}

// broadcast fans a frame out to every admitted member, sender included.
func (r *room) broadcast(frame []byte) {
	r.mu.Lock()
	targets := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		targets = append(targets, m)
	}
	r.mu.Unlock()
	for _, m := range targets {
		if err := m.trySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "relay").Str("member", m.id).Msg("broadcast drop")
		}
	}
}

func (r *room) hasMember(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok
}

// remove detaches a member from every partition. Returns true when the
// departing member was the host.
func (r *room) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	delete(r.waiting, id)
	if r.host != nil && r.host.id == id {
		r.host = nil
		return true
	}
	return false
}

func (r *room) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0 && len(r.waiting) == 0
}

// registry is the room index, created on demand and dropped when empty.
type registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newRegistry() *registry {
	return &registry{rooms: make(map[string]*room)}
}

func (g *registry) getOrCreate(id string) *room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[id]; ok {
		return r
	}
	r := newRoom(id)
	g.rooms[id] = r
	return r
}

func (g *registry) get(id string) (*room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	return r, ok
}

func (g *registry) dropIfEmpty(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[id]; ok && r.empty() {
		delete(g.rooms, id)
	}
}
