package core

import "encoding/json"

// Signaling event vocabulary shared by client, relay and sessions.
// Values are part of the wire protocol; keep them stable.
const (
	EventJoinWebinar  = "joinWebinar"
	EventRequestJoin  = "requestJoin"
	EventUserJoined   = "userJoined"
	EventAdmitted     = "admitted"
	EventDenied       = "denied"
	EventChatMessage  = "chatMessage"
	EventReaction     = "reaction"
	EventOffer        = "signal-offer"
	EventAnswer       = "signal-answer"
	EventICE          = "signal-ice"
	EventWebinarEnded = "webinarEnded"
)

// TargetHost addresses negotiation payloads to the room's host.
const TargetHost = "host"

// Envelope is the wire frame multiplexing every event over one channel.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HandlerFunc consumes the raw payload of one event occurrence.
type HandlerFunc func(data json.RawMessage)

// Subscription is the handle returned at subscription time. Consumers must
// call Unsubscribe on teardown; the channel outlives any single session.
type Subscription interface {
	Unsubscribe()
}

// SignalEmitter is the outbound half of the channel. Fire-and-forget,
// no delivery acknowledgment.
type SignalEmitter interface {
	Emit(event, room string, payload any) error
}

// SignalBus is the full channel surface a session consumes: emission,
// room-scoped subscription and observable connection state.
type SignalBus interface {
	SignalEmitter
	Subscribe(room, event string, fn HandlerFunc) Subscription
	Connected() bool
	OnConnectionChange(fn func(bool)) Subscription
}
