package core

import "github.com/pion/webrtc/v4"

// NegotiationState is the signaling-level lifecycle of a direct peer link.
// ICE connectivity is surfaced separately and never drives these states.
type NegotiationState int32

const (
	NegotiationIdle NegotiationState = iota
	NegotiationOfferCreated
	NegotiationAwaitingAnswer
	NegotiationConnected
	NegotiationClosed
)

func (s NegotiationState) String() string {
	switch s {
	case NegotiationIdle:
		return "idle"
	case NegotiationOfferCreated:
		return "offer_created"
	case NegotiationAwaitingAnswer:
		return "awaiting_answer"
	case NegotiationConnected:
		return "connected"
	case NegotiationClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerLink drives one peer-to-peer media connection through offer/answer/ICE.
type PeerLink interface {
	// Offer creates and transmits the local description (caller role).
	Offer() error
	// HandleOffer applies a remote offer and transmits an answer (callee role).
	HandleOffer(sdp webrtc.SessionDescription) error
	// HandleAnswer applies the remote answer, completing negotiation.
	HandleAnswer(sdp webrtc.SessionDescription) error
	// AddRemoteCandidate applies a remote ICE candidate. Candidates may
	// arrive in any order relative to descriptions and are never dropped.
	AddRemoteCandidate(c webrtc.ICECandidateInit) error
	State() NegotiationState
	// Close releases the connection. Idempotent, reachable from every
	// state. Local tracks are owned by the media controller.
	Close()
}
