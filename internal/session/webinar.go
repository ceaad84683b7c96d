package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/talentbridge/livesession/internal/core"
	"github.com/talentbridge/livesession/internal/domain"
	"github.com/talentbridge/livesession/internal/signal"
)

// WebinarConfig wires one broadcast session. Media distribution is
// out-of-band (the media server is an external collaborator); this session
// is pure chrome: presence, chat, reactions, fullscreen and panel layout.
// Media is the host's controller and stays nil for viewers.
type WebinarConfig struct {
	RoomID      string
	Username    string
	Role        Role
	Media       MediaController
	Bus         core.SignalBus
	ReactionTTL time.Duration
}

type Webinar struct {
	cfg WebinarConfig

	Panels    *PanelState
	Shortcuts *Shortcuts
	Chat      *ChatLog
	Reactions *ReactionQueue
	Roster    *Roster
	Waiting   *WaitingRoom // host only, nil for viewers

	mu         sync.Mutex
	subs       []core.Subscription
	fullscreen bool
	closed     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewWebinar(cfg WebinarConfig) *Webinar {
	keymap := ViewerKeymap()
	if cfg.Role == RoleHost {
		keymap = HostKeymap()
	}
	roster := NewRoster()
	w := &Webinar{
		cfg:       cfg,
		Panels:    NewPanelState(),
		Shortcuts: NewShortcuts(keymap),
		Chat:      NewChatLog(),
		Reactions: NewReactionQueue(cfg.ReactionTTL),
		Roster:    roster,
	}
	if cfg.Role == RoleHost {
		w.Waiting = NewWaitingRoom(roster)
	}
	return w
}

// Join announces presence and attaches the event handlers.
func (w *Webinar) Join(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	retain(w.cfg.Bus)
	w.bindShortcuts()
	w.subscribe()
	return w.cfg.Bus.Emit(core.EventJoinWebinar, w.cfg.RoomID, signal.JoinPayload{
		RoomID:   w.cfg.RoomID,
		Username: w.cfg.Username,
	})
}

func (w *Webinar) bindShortcuts() {
	if w.cfg.Media != nil {
		w.Shortcuts.Bind(ActionToggleMute, func() { _, _ = w.cfg.Media.ToggleMute(w.ctx) })
		w.Shortcuts.Bind(ActionToggleCamera, func() { _, _ = w.cfg.Media.ToggleCamera(w.ctx) })
		w.Shortcuts.Bind(ActionTogglePresent, func() { _, _ = w.cfg.Media.TogglePresent(w.ctx) })
	}
	w.Shortcuts.Bind(ActionToggleFullscreen, func() { w.ToggleFullscreen() })
	w.Shortcuts.Bind(ActionToggleChat, func() { w.Panels.Toggle(PanelChat) })
	w.Shortcuts.Bind(ActionToggleInfo, func() { w.Panels.Toggle(PanelInfo) })
	if w.cfg.Role == RoleHost {
		w.Shortcuts.Bind(ActionTogglePeople, func() { w.Panels.Toggle(PanelPeople) })
	}
}

func (w *Webinar) subscribe() {
	w.sub(core.EventChatMessage, func(data json.RawMessage) {
		var p signal.ChatPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("bad chat payload")
			return
		}
		w.Chat.Append(domain.ChatMessage{
			SenderName:     p.Username,
			Body:           p.Message,
			IsSystemNotice: p.System,
		})
	})
	w.sub(core.EventReaction, func(data json.RawMessage) {
		var p signal.ReactionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("bad reaction payload")
			return
		}
		w.Reactions.Push(domain.Reaction{Emoji: p.Emoji, SenderName: p.Username})
	})
	// The ended notice lands in the chat log; local media keeps running
	// and navigation away stays a user action.
	w.sub(core.EventWebinarEnded, func(_ json.RawMessage) {
		w.Chat.Append(domain.SystemNotice("The webinar has ended"))
	})
	if w.cfg.Role == RoleHost {
		w.sub(core.EventUserJoined, func(data json.RawMessage) {
			var p signal.UserJoinedPayload
			if err := json.Unmarshal(data, &p); err != nil {
				log.Error().Err(err).Str("module", "session").Msg("bad join payload")
				return
			}
			w.Waiting.Add(domain.ParticipantEntry{
				ID:          domain.ParticipantID(p.ID),
				DisplayName: p.Username,
			})
		})
	}
}

func (w *Webinar) sub(event string, fn core.HandlerFunc) {
	s := w.cfg.Bus.Subscribe(w.cfg.RoomID, event, func(data json.RawMessage) {
		if w.closed.Load() {
			return
		}
		fn(data)
	})
	w.mu.Lock()
	w.subs = append(w.subs, s)
	w.mu.Unlock()
}

// SendChat transmits a message; the log updates through the relay echo.
func (w *Webinar) SendChat(body string) error {
	return w.cfg.Bus.Emit(core.EventChatMessage, w.cfg.RoomID, signal.ChatPayload{
		RoomID:   w.cfg.RoomID,
		Username: w.cfg.Username,
		Message:  body,
	})
}

// React transmits one emoji; the overlay updates through the broadcast.
func (w *Webinar) React(emoji string) error {
	return w.cfg.Bus.Emit(core.EventReaction, w.cfg.RoomID, signal.ReactionPayload{
		Username: w.cfg.Username,
		Emoji:    emoji,
	})
}

// Admit grants one waiting entry. Host only.
func (w *Webinar) Admit(id domain.ParticipantID) error {
	if _, ok := w.Waiting.AdmitOne(id); !ok {
		return nil
	}
	return w.cfg.Bus.Emit(core.EventAdmitted, w.cfg.RoomID, signal.AdmitPayload{Target: string(id)})
}

// Deny refuses one waiting entry. Host only.
func (w *Webinar) Deny(id domain.ParticipantID) error {
	if _, ok := w.Waiting.DenyOne(id); !ok {
		return nil
	}
	return w.cfg.Bus.Emit(core.EventDenied, w.cfg.RoomID, signal.AdmitPayload{Target: string(id)})
}

// End broadcasts the lifecycle notice. Host only. The local log updates
// when the broadcast comes back, the same path every attendee takes.
func (w *Webinar) End() error {
	return w.cfg.Bus.Emit(core.EventWebinarEnded, w.cfg.RoomID, nil)
}

// ToggleFullscreen flips the stage fullscreen flag and returns it.
func (w *Webinar) ToggleFullscreen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fullscreen = !w.fullscreen
	return w.fullscreen
}

func (w *Webinar) Fullscreen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fullscreen
}

// StageInset is the width the stage reserves for the open panel.
func (w *Webinar) StageInset() int { return w.Panels.StageInset() }

// Leave detaches handlers, stops local media (host) and drops the channel
// reference. Safe to call more than once.
func (w *Webinar) Leave() {
	if w.closed.Swap(true) {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Lock()
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
	w.Reactions.Stop()
	if w.cfg.Media != nil {
		w.cfg.Media.StopAll()
	}
	release(w.cfg.Bus)
	log.Info().Str("module", "session").Str("room", w.cfg.RoomID).Msg("left webinar")
}
