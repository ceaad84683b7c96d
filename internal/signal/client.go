package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/talentbridge/livesession/internal/core"
)

const (
	defaultWriteWait  = 5 * time.Second
	defaultPingPeriod = 54 * time.Second
	sendQueueSize     = 64
)

// Client is one long-lived signaling channel to the relay, shared by every
// session in the process. It is explicitly constructed and injected, not a
// package-level singleton: sessions Retain it on creation and Release it on
// teardown, and the socket closes when the last reference is dropped.
//
// Events are dispatched from a single read goroutine, so delivery order per
// room matches emission order. Reconnection is transparent; consumers only
// observe it through OnConnectionChange.
type Client struct {
	url    string
	dialer *websocket.Dialer

	pingPeriod time.Duration
	writeWait  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	refs      int
	closed    bool
	subs      map[uint64]*subscription
	stateSubs map[uint64]func(bool)
	nextID    uint64

	send      chan []byte
	connected atomic.Bool
}

type Option func(*Client)

// WithPingPeriod overrides the keepalive interval.
func WithPingPeriod(d time.Duration) Option {
	return func(c *Client) { c.pingPeriod = d }
}

// WithWriteTimeout overrides the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeWait = d }
}

// Dial connects to the relay and starts the pump goroutines. The returned
// client holds one reference on behalf of the caller.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:        url,
		dialer:     websocket.DefaultDialer,
		pingPeriod: defaultPingPeriod,
		writeWait:  defaultWriteWait,
		ctx:        runCtx,
		cancel:     cancel,
		refs:       1,
		subs:       make(map[uint64]*subscription),
		stateSubs:  make(map[uint64]func(bool)),
		send:       make(chan []byte, sendQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	go c.run(conn)
	return c, nil
}

// Retain adds a reference for another consuming session.
func (c *Client) Retain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.refs++
	}
}

// Release drops one reference; the last one closes the channel.
func (c *Client) Release() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.refs--
	done := c.refs <= 0
	if done {
		c.closed = true
	}
	c.mu.Unlock()
	if done {
		c.cancel()
		log.Info().Str("module", "signal").Msg("last reference released, closing channel")
	}
}

// Emit sends one event, fire-and-forget. A full outbound queue drops the
// frame rather than blocking the caller.
func (c *Client) Emit(event, room string, payload any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return core.ErrClosed
	}

	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event, err)
		}
		data = b
	}
	frame, err := json.Marshal(core.Envelope{Event: event, Room: room, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("module", "signal").Str("event", event).Msg("outbound queue full, frame dropped")
	}
	return nil
}

// Subscribe attaches a room-scoped handler and returns its handle. The
// consumer must Unsubscribe on teardown; the channel outlives any session.
func (c *Client) Subscribe(room, event string, fn core.HandlerFunc) core.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	sub := &subscription{client: c, id: c.nextID, room: room, event: event, fn: fn}
	c.subs[sub.id] = sub
	return sub
}

// Connected reports the transport state for UI badges.
func (c *Client) Connected() bool { return c.connected.Load() }

// OnConnectionChange registers an observer for transport state transitions.
func (c *Client) OnConnectionChange(fn func(bool)) core.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.stateSubs[id] = fn
	return &stateSubscription{client: c, id: id}
}

func (c *Client) run(conn *websocket.Conn) {
	for {
		c.setConnected(true)
		stop := make(chan struct{})
		go c.writePump(conn, stop)
		c.readPump(conn)
		close(stop)
		_ = conn.Close()
		c.setConnected(false)

		select {
		case <-c.ctx.Done():
			return
		default:
		}
		next, err := c.reconnect()
		if err != nil {
			return
		}
		conn = next
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Warn().Err(err).Str("module", "signal").Msg("read error")
			}
			return
		}
		var env core.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad envelope")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			return
		case frame := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("write error")
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) reconnect() (*websocket.Conn, error) {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), c.ctx)
	var conn *websocket.Conn
	op := func() error {
		var err error
		conn, _, err = c.dialer.DialContext(c.ctx, c.url, nil)
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Msg("reconnect attempt failed")
		}
		return err
	}
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Msg("reconnected")
	return conn, nil
}

func (c *Client) dispatch(env core.Envelope) {
	c.mu.Lock()
	matched := make([]*subscription, 0, 4)
	for _, sub := range c.subs {
		if sub.event == env.Event && (sub.room == "" || sub.room == env.Room) {
			matched = append(matched, sub)
		}
	}
	c.mu.Unlock()
	for _, sub := range matched {
		sub.fn(env.Data)
	}
}

func (c *Client) setConnected(on bool) {
	if c.connected.Swap(on) == on {
		return
	}
	c.mu.Lock()
	observers := make([]func(bool), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()
	for _, fn := range observers {
		fn(on)
	}
}

type subscription struct {
	client *Client
	id     uint64
	room   string
	event  string
	fn     core.HandlerFunc
}

func (s *subscription) Unsubscribe() {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	delete(s.client.subs, s.id)
}

type stateSubscription struct {
	client *Client
	id     uint64
}

func (s *stateSubscription) Unsubscribe() {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	delete(s.client.stateSubs, s.id)
}

var _ core.SignalBus = (*Client)(nil)
