package session_test

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/livesession/internal/core"
	"github.com/talentbridge/livesession/internal/domain"
	"github.com/talentbridge/livesession/internal/rtc"
	"github.com/talentbridge/livesession/internal/session"
	"github.com/talentbridge/livesession/internal/signal"
)

func newGuestRoom(t *testing.T, bus *fakeBus, media *fakeMedia) *session.InterviewRoom {
	t.Helper()
	room := session.NewInterviewRoom(session.InterviewConfig{
		RoomID:   "R1",
		Username: "Alice",
		Role:     session.RoleGuest,
		Media:    media,
		Bus:      bus,
	})
	require.NoError(t, room.Join(context.Background()))
	return room
}

func TestGuestJoinRequestsAdmission(t *testing.T) {
	bus := newFakeBus()
	media := &fakeMedia{}
	room := newGuestRoom(t, bus, media)
	defer room.Leave()

	ev, ok := bus.lastOf(core.EventRequestJoin)
	require.True(t, ok)
	assert.Equal(t, "R1", ev.Room)
	assert.Equal(t, signal.JoinPayload{RoomID: "R1", Username: "Alice"}, ev.Payload)
	assert.Equal(t, core.NegotiationIdle, room.NegotiationState())
}

func TestAdmissionTriggersOfferAndAnswerCompletes(t *testing.T) {
	bus := newFakeBus()
	room := newGuestRoom(t, bus, &fakeMedia{})
	defer room.Leave()

	bus.deliver(t, core.EventAdmitted, "R1", nil)
	assert.Equal(t, core.NegotiationAwaitingAnswer, room.NegotiationState())

	offerEv, ok := bus.lastOf(core.EventOffer)
	require.True(t, ok)
	offerOut, ok := offerEv.Payload.(rtc.SDPOut)
	require.True(t, ok)
	assert.Equal(t, core.TargetHost, offerOut.Target)

	// A candidate arriving before the answer is held, not dropped.
	bus.deliver(t, core.EventICE, "R1", signal.ICEPayload{
		Candidate: webrtc.ICECandidateInit{
			Candidate: "candidate:1 1 udp 2130706433 127.0.0.1 54321 typ host",
		},
	})
	assert.Equal(t, core.NegotiationAwaitingAnswer, room.NegotiationState())

	// The counterpart answers.
	remote, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer func() { _ = remote.Close() }()
	require.NoError(t, remote.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerOut.SDP,
	}))
	answer, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(answer))

	bus.deliver(t, core.EventAnswer, "R1", signal.SDPPayload{SDP: answer.SDP})
	assert.Equal(t, core.NegotiationConnected, room.NegotiationState())
}

func TestHostAnswersInboundOffer(t *testing.T) {
	bus := newFakeBus()
	room := session.NewInterviewRoom(session.InterviewConfig{
		RoomID:   "R1",
		Username: "Recruiter",
		Role:     session.RoleHost,
		Media:    &fakeMedia{},
		Bus:      bus,
	})
	require.NoError(t, room.Join(context.Background()))
	defer room.Leave()

	ev, ok := bus.lastOf(core.EventJoinWebinar)
	require.True(t, ok)
	assert.Equal(t, "R1", ev.Room)

	bus.deliver(t, core.EventUserJoined, "R1", signal.UserJoinedPayload{ID: "g1", Username: "Alice"})
	require.Equal(t, 1, room.Waiting.Len())

	require.NoError(t, room.Admit("g1"))
	admitEv, ok := bus.lastOf(core.EventAdmitted)
	require.True(t, ok)
	assert.Equal(t, signal.AdmitPayload{Target: "g1"}, admitEv.Payload)
	assert.True(t, room.Roster.Contains("g1"))
	assert.Equal(t, 0, room.Waiting.Len())

	// The admitted guest offers; the host must answer it back to the guest.
	caller, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer func() { _ = caller.Close() }()
	_, err = caller.CreateDataChannel("control", nil)
	require.NoError(t, err)
	offer, err := caller.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, caller.SetLocalDescription(offer))

	bus.deliver(t, core.EventOffer, "R1", signal.SDPPayload{Target: "host", From: "g1", SDP: offer.SDP})
	assert.Equal(t, core.NegotiationConnected, room.NegotiationState())

	answerEv, ok := bus.lastOf(core.EventAnswer)
	require.True(t, ok)
	answerOut, ok := answerEv.Payload.(rtc.SDPOut)
	require.True(t, ok)
	assert.Equal(t, "g1", answerOut.Target, "the answer goes back to the offering guest")
	assert.NotEmpty(t, answerOut.SDP)
}

func TestChatUpdatesOnlyThroughTheEcho(t *testing.T) {
	bus := newFakeBus()
	room := newGuestRoom(t, bus, &fakeMedia{})
	defer room.Leave()

	require.NoError(t, room.SendChat("hello"))
	assert.Equal(t, 0, room.Chat.Len(), "no optimistic local insert")

	bus.deliver(t, core.EventChatMessage, "R1", signal.ChatPayload{
		RoomID: "R1", Username: "Alice", Message: "hello",
	})
	msgs := room.Chat.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.ChatMessage{SenderName: "Alice", Body: "hello"}, msgs[0])
}

func TestLeaveDetachesHandlersAndStopsMedia(t *testing.T) {
	bus := newFakeBus()
	media := &fakeMedia{}
	room := newGuestRoom(t, bus, media)

	room.Leave()
	assert.Equal(t, 1, media.stopCount())

	// A late-arriving event must not mutate the dead session.
	bus.deliver(t, core.EventChatMessage, "R1", signal.ChatPayload{Username: "Bob", Message: "late"})
	assert.Equal(t, 0, room.Chat.Len())

	room.Leave()
	assert.Equal(t, 1, media.stopCount(), "leave is idempotent")
	assert.Equal(t, 1, bus.releases, "exactly one reference dropped")
	assert.Equal(t, 1, bus.retains)
}
