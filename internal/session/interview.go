package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/talentbridge/livesession/internal/core"
	"github.com/talentbridge/livesession/internal/domain"
	"github.com/talentbridge/livesession/internal/media"
	"github.com/talentbridge/livesession/internal/rtc"
	"github.com/talentbridge/livesession/internal/signal"
)

// MediaController is the media surface a session drives. Satisfied by
// *media.Controller; narrowed so tests can substitute a fake.
type MediaController interface {
	EnsureStream(ctx context.Context) (core.Stream, error)
	ToggleMute(ctx context.Context) (bool, error)
	ToggleCamera(ctx context.Context) (bool, error)
	TogglePresent(ctx context.Context) (bool, error)
	StopAll()
	OutgoingTracks() []core.Track
}

var _ MediaController = (*media.Controller)(nil)

// InterviewConfig wires one direct interview-room session.
type InterviewConfig struct {
	RoomID    string
	Username  string
	Role      Role // RoleHost or RoleGuest
	Media     MediaController
	Bus       core.SignalBus
	RTCConfig webrtc.Configuration
}

// InterviewRoom is the one-to-one session: local media, a single peer link
// negotiated over the signaling channel, chat, panels and (host side) the
// admission queue.
//
// Every signal handler checks the liveness flag first: a handler firing
// after Leave must not resurrect session state.
type InterviewRoom struct {
	cfg InterviewConfig

	Panels    *PanelState
	Shortcuts *Shortcuts
	Chat      *ChatLog
	Roster    *Roster
	Waiting   *WaitingRoom // host only, nil for guests

	mu     sync.Mutex
	neg    *rtc.Negotiator
	subs   []core.Subscription
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewInterviewRoom(cfg InterviewConfig) *InterviewRoom {
	roster := NewRoster()
	r := &InterviewRoom{
		cfg:       cfg,
		Panels:    NewPanelState(),
		Shortcuts: NewShortcuts(HostKeymap()),
		Chat:      NewChatLog(),
		Roster:    roster,
	}
	if cfg.Role == RoleHost {
		r.Waiting = NewWaitingRoom(roster)
	}
	return r
}

// Join attaches to the signaling channel and, for guests, requests
// admission. Capture failure is non-fatal: the session stays joinable
// with chat only and the user retries via the media controls.
func (r *InterviewRoom) Join(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	retain(r.cfg.Bus)

	if _, err := r.cfg.Media.EnsureStream(r.ctx); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("capture unavailable, continuing without media")
	}

	r.bindShortcuts()
	r.subscribeCommon()
	switch r.cfg.Role {
	case RoleHost:
		r.subscribeHost()
		return r.cfg.Bus.Emit(core.EventJoinWebinar, r.cfg.RoomID, signal.JoinPayload{
			RoomID:   r.cfg.RoomID,
			Username: r.cfg.Username,
		})
	default:
		r.subscribeGuest()
		return r.cfg.Bus.Emit(core.EventRequestJoin, r.cfg.RoomID, signal.JoinPayload{
			RoomID:   r.cfg.RoomID,
			Username: r.cfg.Username,
		})
	}
}

func (r *InterviewRoom) bindShortcuts() {
	r.Shortcuts.Bind(ActionToggleMute, func() { _, _ = r.cfg.Media.ToggleMute(r.ctx) })
	r.Shortcuts.Bind(ActionToggleCamera, func() { _, _ = r.cfg.Media.ToggleCamera(r.ctx) })
	r.Shortcuts.Bind(ActionTogglePresent, func() { _, _ = r.cfg.Media.TogglePresent(r.ctx) })
	r.Shortcuts.Bind(ActionToggleChat, func() { r.Panels.Toggle(PanelChat) })
	r.Shortcuts.Bind(ActionToggleInfo, func() { r.Panels.Toggle(PanelInfo) })
	r.Shortcuts.Bind(ActionTogglePeople, func() { r.Panels.Toggle(PanelPeople) })
}

func (r *InterviewRoom) subscribeCommon() {
	r.sub(core.EventChatMessage, func(data json.RawMessage) {
		var p signal.ChatPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("bad chat payload")
			return
		}
		r.Chat.Append(domain.ChatMessage{
			SenderName:     p.Username,
			Body:           p.Message,
			IsSystemNotice: p.System,
		})
	})
	r.sub(core.EventICE, func(data json.RawMessage) {
		var p signal.ICEPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("bad candidate payload")
			return
		}
		neg := r.negotiator()
		if neg == nil {
			log.Debug().Str("module", "session").Msg("candidate before negotiation, dropped")
			return
		}
		if err := neg.AddRemoteCandidate(p.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("apply candidate")
		}
	})
}

func (r *InterviewRoom) subscribeGuest() {
	r.sub(core.EventAdmitted, func(_ json.RawMessage) {
		neg, err := r.ensureNegotiator(core.TargetHost)
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("negotiator setup")
			return
		}
		if err := neg.Offer(); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("offer")
		}
	})
	r.sub(core.EventAnswer, func(data json.RawMessage) {
		var p signal.SDPPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("bad answer payload")
			return
		}
		neg := r.negotiator()
		if neg == nil {
			return
		}
		err := neg.HandleAnswer(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  p.SDP,
		})
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("apply answer")
		}
	})
}

func (r *InterviewRoom) subscribeHost() {
	r.sub(core.EventUserJoined, func(data json.RawMessage) {
		var p signal.UserJoinedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("bad join payload")
			return
		}
		r.Waiting.Add(domain.ParticipantEntry{
			ID:          domain.ParticipantID(p.ID),
			DisplayName: p.Username,
		})
	})
	r.sub(core.EventOffer, func(data json.RawMessage) {
		var p signal.SDPPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("bad offer payload")
			return
		}
		target := p.From
		if target == "" {
			target = core.TargetHost
		}
		neg, err := r.ensureNegotiator(target)
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("negotiator setup")
			return
		}
		err = neg.HandleOffer(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  p.SDP,
		})
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("apply offer")
		}
	})
}

// sub wraps Subscribe with the liveness guard.
func (r *InterviewRoom) sub(event string, fn core.HandlerFunc) {
	s := r.cfg.Bus.Subscribe(r.cfg.RoomID, event, func(data json.RawMessage) {
		if r.closed.Load() {
			return
		}
		fn(data)
	})
	r.mu.Lock()
	r.subs = append(r.subs, s)
	r.mu.Unlock()
}

func (r *InterviewRoom) negotiator() *rtc.Negotiator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.neg
}

func (r *InterviewRoom) ensureNegotiator(target string) (*rtc.Negotiator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.neg != nil {
		return r.neg, nil
	}
	neg, err := rtc.NewNegotiator(r.cfg.RTCConfig, r.cfg.Bus, r.cfg.RoomID, target, r.cfg.Media.OutgoingTracks())
	if err != nil {
		return nil, err
	}
	r.neg = neg
	return neg, nil
}

// Admit grants one waiting entry and signals it. Host only.
func (r *InterviewRoom) Admit(id domain.ParticipantID) error {
	if _, ok := r.Waiting.AdmitOne(id); !ok {
		return nil
	}
	return r.cfg.Bus.Emit(core.EventAdmitted, r.cfg.RoomID, signal.AdmitPayload{Target: string(id)})
}

// Deny removes one waiting entry and signals it. Host only.
func (r *InterviewRoom) Deny(id domain.ParticipantID) error {
	if _, ok := r.Waiting.DenyOne(id); !ok {
		return nil
	}
	return r.cfg.Bus.Emit(core.EventDenied, r.cfg.RoomID, signal.AdmitPayload{Target: string(id)})
}

// SendChat transmits a message. The log updates only through the relay's
// echo, never by local insertion.
func (r *InterviewRoom) SendChat(body string) error {
	return r.cfg.Bus.Emit(core.EventChatMessage, r.cfg.RoomID, signal.ChatPayload{
		RoomID:   r.cfg.RoomID,
		Username: r.cfg.Username,
		Message:  body,
	})
}

// NegotiationState reports the peer link lifecycle for the status badge.
func (r *InterviewRoom) NegotiationState() core.NegotiationState {
	neg := r.negotiator()
	if neg == nil {
		return core.NegotiationIdle
	}
	return neg.State()
}

// Leave tears the session down: detaches every handler, closes the peer
// link, force-stops local media and drops the channel reference. Safe to
// call more than once.
func (r *InterviewRoom) Leave() {
	if r.closed.Swap(true) {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	neg := r.neg
	r.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
	if neg != nil {
		neg.Close()
	}
	r.cfg.Media.StopAll()
	release(r.cfg.Bus)
	log.Info().Str("module", "session").Str("room", r.cfg.RoomID).Msg("left interview room")
}
