package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talentbridge/livesession/internal/core"
	"github.com/talentbridge/livesession/internal/media"
)

// fakeBus is an in-memory core.SignalBus recording emissions and allowing
// tests to inject inbound events.
type fakeBus struct {
	mu       sync.Mutex
	emitted  []emittedEvent
	subs     map[uint64]*fakeSub
	nextID   uint64
	retains  int
	releases int
}

type emittedEvent struct {
	Event   string
	Room    string
	Payload any
}

type fakeSub struct {
	bus   *fakeBus
	id    uint64
	room  string
	event string
	fn    core.HandlerFunc
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[uint64]*fakeSub)}
}

func (b *fakeBus) Emit(event, room string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = append(b.emitted, emittedEvent{Event: event, Room: room, Payload: payload})
	return nil
}

func (b *fakeBus) Subscribe(room, event string, fn core.HandlerFunc) core.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &fakeSub{bus: b, id: b.nextID, room: room, event: event, fn: fn}
	b.subs[s.id] = s
	return s
}

func (b *fakeBus) Connected() bool { return true }

func (b *fakeBus) OnConnectionChange(_ func(bool)) core.Subscription {
	return b.Subscribe("", "", nil)
}

func (b *fakeBus) Retain()  { b.mu.Lock(); b.retains++; b.mu.Unlock() }
func (b *fakeBus) Release() { b.mu.Lock(); b.releases++; b.mu.Unlock() }

func (s *fakeSub) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
}

// deliver injects one inbound event, dispatching like the real client:
// synchronously, in subscription order.
func (b *fakeBus) deliver(t *testing.T, event, room string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}
	b.mu.Lock()
	matched := make([]*fakeSub, 0, len(b.subs))
	for _, s := range b.subs {
		if s.event == event && (s.room == "" || s.room == room) {
			matched = append(matched, s)
		}
	}
	b.mu.Unlock()
	for _, s := range matched {
		s.fn(data)
	}
}

// events returns a snapshot of everything emitted so far.
func (b *fakeBus) events() []emittedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]emittedEvent, len(b.emitted))
	copy(out, b.emitted)
	return out
}

func (b *fakeBus) lastOf(event string) (emittedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.emitted) - 1; i >= 0; i-- {
		if b.emitted[i].Event == event {
			return b.emitted[i], true
		}
	}
	return emittedEvent{}, false
}

// fakeMedia satisfies session.MediaController without touching capture.
type fakeMedia struct {
	mu       sync.Mutex
	ensured  int
	stopped  int
	audioOn  bool
	videoOn  bool
	present  bool
}

func (m *fakeMedia) EnsureStream(_ context.Context) (core.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured++
	return media.NewStream("fake"), nil
}

func (m *fakeMedia) ToggleMute(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioOn = !m.audioOn
	return m.audioOn, nil
}

func (m *fakeMedia) ToggleCamera(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoOn = !m.videoOn
	return m.videoOn, nil
}

func (m *fakeMedia) TogglePresent(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.present = !m.present
	return m.present, nil
}

func (m *fakeMedia) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
}

func (m *fakeMedia) OutgoingTracks() []core.Track { return nil }

func (m *fakeMedia) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
