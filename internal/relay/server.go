package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/talentbridge/livesession/internal/config"
	"github.com/talentbridge/livesession/internal/core"
	"github.com/talentbridge/livesession/internal/signal"
)

// Server is the reference relay: it brokers presence, admission, chat,
// reactions and peer negotiation frames between session clients. It keeps
// no state beyond live connections; the production relay is an external
// collaborator and this one exists for tests, local dev and the CLI demo.
type Server struct {
	cfg      *config.Config
	reg      *registry
	upgrader websocket.Upgrader
}

func New(cfg *config.Config) *Server {
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 54 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Server{
		cfg: cfg,
		reg: newRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ClientTokenMiddleware tags each browser with a stable opaque token used
// for log correlation.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Router builds the gin engine serving the websocket endpoint.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if s.cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(s.cfg.Secret))
	r.Use(sessions.Sessions("LiveSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/ws", s.handleWS)
	return r
}

func (s *Server) handleWS(c *gin.Context) {
	token := c.GetString("client_token")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("ws upgrade")
		return
	}
	// Member ids are per-connection: two tabs under one cookie stay
	// distinguishable, and identity is never inferred from display names.
	m := newMember(uuid.NewString())
	log.Info().Str("module", "relay").Str("id", m.id).Str("token", token).Msg("new connection")

	defer func() {
		m.close()
		_ = conn.Close()
		s.disconnect(m)
	}()
	go s.writePump(conn, m)

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "relay").Str("id", m.id).Msg("read closed")
			return
		}
		s.handleFrame(m, data)
	}
}

func (s *Server) writePump(conn *websocket.Conn, m *member) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-m.send:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "relay").Str("id", m.id).Msg("write error")
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(m *member, raw []byte) {
	var env core.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad envelope")
		return
	}
	switch env.Event {
	case core.EventJoinWebinar:
		s.handleAnnounce(m, env)
	case core.EventRequestJoin:
		s.handleRequestJoin(m, env)
	case core.EventAdmitted, core.EventDenied:
		s.handleDecision(m, env)
	case core.EventChatMessage, core.EventReaction, core.EventWebinarEnded:
		if r, ok := s.reg.get(env.Room); ok {
			r.broadcast(raw)
		}
	case core.EventOffer, core.EventAnswer, core.EventICE:
		s.routeSignal(m, env)
	default:
		log.Warn().Str("module", "relay").Str("event", env.Event).Msg("unknown event")
	}
}

func (s *Server) handleAnnounce(m *member, env core.Envelope) {
	var p signal.JoinPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad join payload")
		return
	}
	m.username = p.Username
	r := s.reg.getOrCreate(env.Room)
	isHost := r.announce(m)
	log.Info().Str("module", "relay").Str("room", env.Room).
		Str("username", p.Username).Bool("host", isHost).Msg("announced")

	notice := fmt.Sprintf("%s joined", p.Username)
	if frame, err := marshalEnvelope(core.EventChatMessage, env.Room, signal.ChatPayload{
		RoomID:  env.Room,
		Message: notice,
		System:  true,
	}); err == nil {
		r.broadcast(frame)
	}
}

func (s *Server) handleRequestJoin(m *member, env core.Envelope) {
	var p signal.JoinPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad join payload")
		return
	}
	m.username = p.Username
	r := s.reg.getOrCreate(env.Room)
	r.requestJoin(m)

	host := r.hostMember()
	if host == nil {
		log.Warn().Str("module", "relay").Str("room", env.Room).Msg("join request with no host present")
		return
	}
	frame, err := marshalEnvelope(core.EventUserJoined, env.Room, signal.UserJoinedPayload{
		ID:       m.id,
		Username: p.Username,
	})
	if err != nil {
		return
	}
	if err := host.trySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "relay").Msg("notify host")
	}
}

// handleDecision forwards admit/deny from the host to the waiting member.
func (s *Server) handleDecision(m *member, env core.Envelope) {
	var p signal.AdmitPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad decision payload")
		return
	}
	r, ok := s.reg.get(env.Room)
	if !ok {
		return
	}
	if host := r.hostMember(); host == nil || host.id != m.id {
		log.Warn().Str("module", "relay").Str("id", m.id).Msg("decision from non-host ignored")
		return
	}
	var target *member
	if env.Event == core.EventAdmitted {
		target, ok = r.admit(p.Target)
	} else {
		target, ok = r.deny(p.Target)
	}
	if !ok {
		// Already decided once; the transition is single-shot.
		return
	}
	frame, err := marshalEnvelope(env.Event, env.Room, nil)
	if err != nil {
		return
	}
	if err := target.trySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("target", p.Target).Msg("forward decision")
	}
}

// routeSignal stamps the sender id into the payload and forwards it to the
// addressed counterpart.
func (s *Server) routeSignal(m *member, env core.Envelope) {
	r, ok := s.reg.get(env.Room)
	if !ok {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad signal payload")
		return
	}
	var target string
	if raw, ok := fields["target"]; ok {
		_ = json.Unmarshal(raw, &target)
	}
	dest, ok := r.lookup(target)
	if !ok {
		log.Warn().Str("module", "relay").Str("target", target).Str("event", env.Event).Msg("no route")
		return
	}
	from, _ := json.Marshal(m.id)
	fields["from"] = from
	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	frame, err := json.Marshal(core.Envelope{Event: env.Event, Room: env.Room, Data: data})
	if err != nil {
		return
	}
	if err := dest.trySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("event", env.Event).Msg("forward signal")
	}
}

func (s *Server) disconnect(m *member) {
	s.reg.mu.Lock()
	rooms := make([]*room, 0, len(s.reg.rooms))
	for _, r := range s.reg.rooms {
		rooms = append(rooms, r)
	}
	s.reg.mu.Unlock()
	for _, r := range rooms {
		wasMember := r.hasMember(m.id)
		wasHost := r.remove(m.id)
		if wasMember && m.username != "" {
			if frame, err := marshalEnvelope(core.EventChatMessage, r.id, signal.ChatPayload{
				RoomID:  r.id,
				Message: fmt.Sprintf("%s left", m.username),
				System:  true,
			}); err == nil {
				r.broadcast(frame)
			}
		}
		if wasHost {
			log.Info().Str("module", "relay").Str("room", r.id).Msg("host disconnected")
		}
		s.reg.dropIfEmpty(r.id)
	}
}

func marshalEnvelope(event, room string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	frame, err := json.Marshal(core.Envelope{Event: event, Room: room, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("marshal envelope")
		return nil, err
	}
	return frame, nil
}
