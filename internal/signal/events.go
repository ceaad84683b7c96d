package signal

import "github.com/pion/webrtc/v4"

// Payload shapes for the relay event vocabulary (core.Event*). The relay
// treats most of these as opaque and routes on the envelope alone.

// JoinPayload announces presence (joinWebinar) or requests admission
// (requestJoin).
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// UserJoinedPayload notifies the host of a new waiting entrant. The id is
// relay-assigned and opaque; duplicate display names stay distinguishable.
type UserJoinedPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AdmitPayload grants or denies entry to one waiting participant.
type AdmitPayload struct {
	Target string `json:"target"`
}

// ChatPayload is a chat log entry. System notices carry System=true and no
// username.
type ChatPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
	System   bool   `json:"system,omitempty"`
}

// ReactionPayload is an ephemeral emoji event.
type ReactionPayload struct {
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

// SDPPayload relays an offer or answer to the named counterpart. The relay
// stamps From with the sender's id so the receiver can address the reply.
type SDPPayload struct {
	Target string `json:"target"`
	From   string `json:"from,omitempty"`
	SDP    string `json:"sdp"`
}

// ICEPayload relays one ICE candidate to the named counterpart.
type ICEPayload struct {
	Target    string                  `json:"target"`
	From      string                  `json:"from,omitempty"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}
