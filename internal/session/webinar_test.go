package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/livesession/internal/core"
	"github.com/talentbridge/livesession/internal/domain"
	"github.com/talentbridge/livesession/internal/session"
	"github.com/talentbridge/livesession/internal/signal"
)

func newWebinar(t *testing.T, bus *fakeBus, role session.Role, media session.MediaController) *session.Webinar {
	t.Helper()
	w := session.NewWebinar(session.WebinarConfig{
		RoomID:      "W1",
		Username:    "Carol",
		Role:        role,
		Media:       media,
		Bus:         bus,
		ReactionTTL: time.Minute,
	})
	require.NoError(t, w.Join(context.Background()))
	return w
}

func TestWebinarJoinAnnouncesPresence(t *testing.T) {
	bus := newFakeBus()
	w := newWebinar(t, bus, session.RoleViewer, nil)
	defer w.Leave()

	ev, ok := bus.lastOf(core.EventJoinWebinar)
	require.True(t, ok)
	assert.Equal(t, "W1", ev.Room)
	assert.Equal(t, signal.JoinPayload{RoomID: "W1", Username: "Carol"}, ev.Payload)
}

func TestWebinarChatAndReactionsFollowTheBroadcast(t *testing.T) {
	bus := newFakeBus()
	w := newWebinar(t, bus, session.RoleViewer, nil)
	defer w.Leave()

	require.NoError(t, w.SendChat("great talk"))
	require.NoError(t, w.React("👏"))
	assert.Equal(t, 0, w.Chat.Len())
	assert.Empty(t, w.Reactions.Active())

	bus.deliver(t, core.EventChatMessage, "W1", signal.ChatPayload{Username: "Carol", Message: "great talk"})
	bus.deliver(t, core.EventReaction, "W1", signal.ReactionPayload{Username: "Dave", Emoji: "🎉"})

	msgs := w.Chat.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "great talk", msgs[0].Body)

	active := w.Reactions.Active()
	require.Len(t, active, 1)
	assert.Equal(t, domain.Reaction{Emoji: "🎉", SenderName: "Dave"}, withoutTimestamp(active[0]))
}

func withoutTimestamp(r domain.Reaction) domain.Reaction {
	r.ReceivedAt = time.Time{}
	return r
}

func TestWebinarEndedNoticeLeavesMediaRunning(t *testing.T) {
	bus := newFakeBus()
	media := &fakeMedia{}
	w := newWebinar(t, bus, session.RoleHost, media)
	defer w.Leave()

	require.NoError(t, w.End())
	endEv, ok := bus.lastOf(core.EventWebinarEnded)
	require.True(t, ok)
	assert.Equal(t, "W1", endEv.Room)
	assert.Equal(t, 0, w.Chat.Len(), "the local log waits for the broadcast")

	bus.deliver(t, core.EventWebinarEnded, "W1", nil)
	msgs := w.Chat.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsSystemNotice)
	assert.Equal(t, "The webinar has ended", msgs[0].Body)
	assert.Equal(t, 0, media.stopCount(), "the ended notice never stops capture")
}

func TestWebinarHostAdmitsFromWaitingList(t *testing.T) {
	bus := newFakeBus()
	w := newWebinar(t, bus, session.RoleHost, &fakeMedia{})
	defer w.Leave()

	bus.deliver(t, core.EventUserJoined, "W1", signal.UserJoinedPayload{ID: "v1", Username: "Dave"})
	bus.deliver(t, core.EventUserJoined, "W1", signal.UserJoinedPayload{ID: "v2", Username: "Erin"})
	require.Equal(t, 2, w.Waiting.Len())

	require.NoError(t, w.Admit("v1"))
	require.NoError(t, w.Deny("v2"))

	admitEv, ok := bus.lastOf(core.EventAdmitted)
	require.True(t, ok)
	assert.Equal(t, signal.AdmitPayload{Target: "v1"}, admitEv.Payload)
	denyEv, ok := bus.lastOf(core.EventDenied)
	require.True(t, ok)
	assert.Equal(t, signal.AdmitPayload{Target: "v2"}, denyEv.Payload)

	assert.True(t, w.Roster.Contains("v1"))
	assert.False(t, w.Roster.Contains("v2"))
	assert.Equal(t, 0, w.Waiting.Len())

	require.NoError(t, w.Admit("v1"), "re-deciding a settled entry is a no-op")
	assert.Len(t, filterEvents(bus, core.EventAdmitted), 1)
}

func filterEvents(bus *fakeBus, event string) []emittedEvent {
	var out []emittedEvent
	for _, ev := range bus.events() {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func TestViewerFullscreenAndPanels(t *testing.T) {
	bus := newFakeBus()
	w := newWebinar(t, bus, session.RoleViewer, nil)
	defer w.Leave()

	assert.True(t, w.Shortcuts.HandleKey('f', false))
	assert.True(t, w.Fullscreen())
	assert.True(t, w.Shortcuts.HandleKey('f', false))
	assert.False(t, w.Fullscreen())

	assert.True(t, w.Shortcuts.HandleKey('c', false))
	assert.Equal(t, session.PanelChat, w.Panels.Active())
	assert.Equal(t, session.DefaultPanelWidth, w.StageInset())
}

func TestWebinarLeaveStopsHostMediaOnce(t *testing.T) {
	bus := newFakeBus()
	media := &fakeMedia{}
	w := newWebinar(t, bus, session.RoleHost, media)

	w.Leave()
	w.Leave()
	assert.Equal(t, 1, media.stopCount())
	assert.Equal(t, 1, bus.retains)
	assert.Equal(t, 1, bus.releases)

	bus.deliver(t, core.EventChatMessage, "W1", signal.ChatPayload{Username: "Dave", Message: "late"})
	assert.Equal(t, 0, w.Chat.Len())
}
