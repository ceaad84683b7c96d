package rtc_test

import (
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/livesession/internal/core"
	"github.com/talentbridge/livesession/internal/rtc"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Event   string
	Room    string
	Payload any
}

func (e *recordingEmitter) Emit(event, room string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{Event: event, Room: room, Payload: payload})
	return nil
}

func (e *recordingEmitter) lastOf(event string) (recordedEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].Event == event {
			return e.events[i], true
		}
	}
	return recordedEvent{}, false
}

func newCounterpart(t *testing.T) *webrtc.PeerConnection {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func answerTo(t *testing.T, pc *webrtc.PeerConnection, offerSDP string) webrtc.SessionDescription {
	t.Helper()
	require.NoError(t, pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}))
	answer, err := pc.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(answer))
	return answer
}

func TestOfferEmitsAndAwaitsAnswer(t *testing.T) {
	em := &recordingEmitter{}
	n, err := rtc.NewNegotiator(webrtc.Configuration{}, em, "R1", core.TargetHost, nil)
	require.NoError(t, err)
	defer n.Close()

	assert.Equal(t, core.NegotiationIdle, n.State())
	require.NoError(t, n.Offer())
	assert.Equal(t, core.NegotiationAwaitingAnswer, n.State())

	ev, ok := em.lastOf(core.EventOffer)
	require.True(t, ok)
	assert.Equal(t, "R1", ev.Room)
	out, ok := ev.Payload.(rtc.SDPOut)
	require.True(t, ok)
	assert.Equal(t, core.TargetHost, out.Target)
	assert.NotEmpty(t, out.SDP)
}

func TestEarlyCandidateIsHeldUntilTheAnswer(t *testing.T) {
	em := &recordingEmitter{}
	n, err := rtc.NewNegotiator(webrtc.Configuration{}, em, "R1", core.TargetHost, nil)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Offer())

	// No remote description yet, so the candidate cannot be applied. It must
	// be held and applied once the answer lands, never rejected.
	require.NoError(t, n.AddRemoteCandidate(webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706433 127.0.0.1 54321 typ host",
	}))
	assert.Equal(t, core.NegotiationAwaitingAnswer, n.State())

	ev, _ := em.lastOf(core.EventOffer)
	answer := answerTo(t, newCounterpart(t), ev.Payload.(rtc.SDPOut).SDP)

	require.NoError(t, n.HandleAnswer(answer))
	assert.Equal(t, core.NegotiationConnected, n.State())

	// With a description in place further candidates apply directly.
	require.NoError(t, n.AddRemoteCandidate(webrtc.ICECandidateInit{
		Candidate: "candidate:2 1 udp 2130706431 127.0.0.1 54322 typ host",
	}))
}

func TestHandleOfferAnswersBack(t *testing.T) {
	caller := newCounterpart(t)
	_, err := caller.CreateDataChannel("control", nil)
	require.NoError(t, err)
	offer, err := caller.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, caller.SetLocalDescription(offer))

	em := &recordingEmitter{}
	n, err := rtc.NewNegotiator(webrtc.Configuration{}, em, "R1", "g1", nil)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.HandleOffer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}))
	assert.Equal(t, core.NegotiationConnected, n.State())

	ev, ok := em.lastOf(core.EventAnswer)
	require.True(t, ok)
	out, ok := ev.Payload.(rtc.SDPOut)
	require.True(t, ok)
	assert.Equal(t, "g1", out.Target)
	assert.NotEmpty(t, out.SDP)
}

func TestCloseIsTerminalFromAnyPoint(t *testing.T) {
	em := &recordingEmitter{}
	n, err := rtc.NewNegotiator(webrtc.Configuration{}, em, "R1", core.TargetHost, nil)
	require.NoError(t, err)

	require.NoError(t, n.Offer())
	n.Close()
	n.Close()
	assert.Equal(t, core.NegotiationClosed, n.State())

	assert.ErrorIs(t, n.Offer(), core.ErrClosed)
	assert.ErrorIs(t, n.HandleAnswer(webrtc.SessionDescription{}), core.ErrClosed)
	assert.ErrorIs(t, n.AddRemoteCandidate(webrtc.ICECandidateInit{}), core.ErrClosed)
}
