package rtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/talentbridge/livesession/internal/core"
)

// Negotiator drives one direct peer connection through offer/answer/ICE
// exchange over the signaling channel. One instance per interview-room
// session; there is no renegotiation or retry, a failed link is only
// surfaced through the ICE state callback.
//
// Remote candidates may arrive before the remote description; pion rejects
// those, so they are buffered and flushed once a description is applied.
type Negotiator struct {
	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	emitter core.SignalEmitter
	room    string
	target  string
	state   core.NegotiationState
	pending []webrtc.ICECandidateInit

	onICEState func(webrtc.ICEConnectionState)
}

func DefaultConfiguration(stunServers []string) webrtc.Configuration {
	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	}
}

// NewNegotiator builds the underlying peer connection, attaches the given
// local tracks as outgoing media and wires local ICE candidates to the
// signaling channel, addressed to target.
func NewNegotiator(
	cfg webrtc.Configuration,
	emitter core.SignalEmitter,
	room, target string,
	tracks []core.Track,
) (*Negotiator, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	n := &Negotiator{
		pc:      pc,
		emitter: emitter,
		room:    room,
		target:  target,
		state:   core.NegotiationIdle,
	}

	for _, t := range tracks {
		local := t.Local()
		if local == nil {
			continue
		}
		if _, err := pc.AddTrack(local); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add track %s: %w", t.ID(), err)
		}
	}

	// A control channel keeps the offer valid even when capture failed and
	// no media tracks exist; the session stays joinable with chat only.
	if _, err := pc.CreateDataChannel("control", nil); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create control channel: %w", err)
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		err := n.emitter.Emit(core.EventICE, n.room, ICEOut{
			Target:    n.target,
			Candidate: cand.ToJSON(),
		})
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("emit candidate")
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		n.mu.Lock()
		fn := n.onICEState
		n.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	})

	return n, nil
}

// ICEOut mirrors the signal-ice payload without importing the signal
// package (which would cycle through the sessions).
type ICEOut struct {
	Target    string                  `json:"target"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// SDPOut mirrors the signal-offer / signal-answer payload.
type SDPOut struct {
	Target string `json:"target"`
	SDP    string `json:"sdp"`
}

// OnICEStateChange registers the passive connectivity indicator callback.
func (n *Negotiator) OnICEStateChange(fn func(webrtc.ICEConnectionState)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onICEState = fn
}

// Offer creates the local description and transmits it to the counterpart.
// Caller role; invoked on the admission signal.
func (n *Negotiator) Offer() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == core.NegotiationClosed {
		return core.ErrClosed
	}
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	n.state = core.NegotiationOfferCreated
	if err := n.emitter.Emit(core.EventOffer, n.room, SDPOut{Target: n.target, SDP: offer.SDP}); err != nil {
		return fmt.Errorf("emit offer: %w", err)
	}
	n.state = core.NegotiationAwaitingAnswer
	log.Info().Str("module", "rtc").Str("room", n.room).Msg("offer sent")
	return nil
}

// HandleOffer applies a remote offer, answers it and transmits the answer.
// Callee role; the host side of an interview room.
func (n *Negotiator) HandleOffer(sdp webrtc.SessionDescription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == core.NegotiationClosed {
		return core.ErrClosed
	}
	if err := n.pc.SetRemoteDescription(sdp); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	if err := n.flushPendingLocked(); err != nil {
		return err
	}
	n.state = core.NegotiationConnected
	if err := n.emitter.Emit(core.EventAnswer, n.room, SDPOut{Target: n.target, SDP: answer.SDP}); err != nil {
		return fmt.Errorf("emit answer: %w", err)
	}
	log.Info().Str("module", "rtc").Str("room", n.room).Msg("answer sent")
	return nil
}

// HandleAnswer applies the remote answer, completing negotiation.
func (n *Negotiator) HandleAnswer(sdp webrtc.SessionDescription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == core.NegotiationClosed {
		return core.ErrClosed
	}
	if err := n.pc.SetRemoteDescription(sdp); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	if err := n.flushPendingLocked(); err != nil {
		return err
	}
	n.state = core.NegotiationConnected
	log.Info().Str("module", "rtc").Str("room", n.room).Msg("negotiation connected")
	return nil
}

// AddRemoteCandidate applies a candidate immediately when a remote
// description is present, otherwise holds it for the flush.
func (n *Negotiator) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == core.NegotiationClosed {
		return core.ErrClosed
	}
	if n.pc.RemoteDescription() == nil {
		n.pending = append(n.pending, c)
		return nil
	}
	if err := n.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

func (n *Negotiator) flushPendingLocked() error {
	for _, c := range n.pending {
		if err := n.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add buffered candidate: %w", err)
		}
	}
	n.pending = nil
	return nil
}

func (n *Negotiator) State() core.NegotiationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// OnRemoteTrack registers the callback for inbound media.
func (n *Negotiator) OnRemoteTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	n.pc.OnTrack(fn)
}

// Close releases the connection. Idempotent, reachable from every state.
// Local tracks are owned by the media controller, which stops them itself.
func (n *Negotiator) Close() {
	n.mu.Lock()
	if n.state == core.NegotiationClosed {
		n.mu.Unlock()
		return
	}
	n.state = core.NegotiationClosed
	n.pending = nil
	pc := n.pc
	n.mu.Unlock()
	if err := pc.Close(); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Msg("close")
	}
}

var _ core.PeerLink = (*Negotiator)(nil)
