package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/logger"
)

// Options tunes a session's channel behavior.
type Options struct {
	// SendBuffer is the outbound event buffer; pushes beyond it are
	// dropped rather than blocking the producer.
	SendBuffer int
	// PingInterval is the keepalive cadence of the write pump.
	PingInterval time.Duration
	// ReadLimit caps inbound frame size.
	ReadLimit int64
	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration
}

// DefaultOptions returns the options used when a zero value is supplied.
func DefaultOptions() Options {
	return Options{
		SendBuffer:   64,
		PingInterval: 30 * time.Second,
		ReadLimit:    4 * 1024,
		WriteTimeout: 10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}

// Session is one live connection's event channel. Pushes are non-blocking:
// when the buffer is full the event is dropped and the durable store
// remains the source of truth. A nil conn is allowed (used by tests and
// never by the websocket handler); such a session buffers pushes without
// a write pump.
type Session struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	opts   Options

	closeOnce sync.Once

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewSession wraps an upgraded websocket connection for userID.
func NewSession(userID string, conn *websocket.Conn, opts Options) *Session {
	o := opts.withDefaults()
	return &Session{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, o.SendBuffer),
		done:   make(chan struct{}),
		opts:   o,
		subs:   make(map[*Subscription]struct{}),
	}
}

// UserID returns the canonical identity this session was attached under.
func (s *Session) UserID() string { return s.userID }

// Push enqueues an event for delivery. It returns false when the event was
// dropped (buffer full or session closed); a filtered-out kind counts as
// handled. Push never blocks.
func (s *Session) Push(ev Event) bool {
	if !s.wants(ev.Event) {
		return true
	}
	data, err := Encode(ev)
	if err != nil {
		logger.Error("event_encode_failed", "event", string(ev.Event), "error", err)
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		eventsPushed.WithLabelValues(string(ev.Event)).Inc()
		return true
	default:
		eventsDropped.WithLabelValues(string(ev.Event)).Inc()
		logger.Warn("event_dropped", "event", string(ev.Event), "user", s.userID)
		return false
	}
}

// Subscription is a scoped set of event-kind filters on a session,
// released deterministically when its view closes.
type Subscription struct {
	s     *Session
	kinds map[Kind]struct{}
	once  sync.Once
}

// Subscribe registers a scoped filter for the given kinds. While any
// subscription is active only subscribed kinds (plus presence snapshots)
// are delivered; with none active the session receives everything.
func (s *Session) Subscribe(kinds ...Kind) *Subscription {
	sub := &Subscription{s: s, kinds: make(map[Kind]struct{}, len(kinds))}
	for _, k := range kinds {
		sub.kinds[k] = struct{}{}
	}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

// Release removes the subscription; safe to call more than once.
func (sub *Subscription) Release() {
	sub.once.Do(func() {
		sub.s.mu.Lock()
		delete(sub.s.subs, sub)
		sub.s.mu.Unlock()
	})
}

func (s *Session) wants(k Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 || k == KindPresenceSnapshot {
		return true
	}
	for sub := range s.subs {
		if _, ok := sub.kinds[k]; ok {
			return true
		}
	}
	return false
}

// WritePump drains the send buffer onto the socket and keeps the
// connection alive with pings. It exits when the session closes.
func (s *Session) WritePump() {
	if s.conn == nil {
		return
	}
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("session_write_failed", "user", s.userID, "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				s.Close()
				return
			}
		}
	}
}

// TypingRelay receives client-originated typing signals: kind is
// KindTyping or KindStopTyping and receiverID names the peer to forward
// to.
type TypingRelay func(kind Kind, receiverID string)

// ReadLoop consumes inbound frames until the connection drops. Only the
// typing relay frames are acted on; everything else is ignored. The
// session is closed on exit.
func (s *Session) ReadLoop(relay TypingRelay) {
	if s.conn == nil {
		return
	}
	defer s.Close()
	s.conn.SetReadLimit(s.opts.ReadLimit)
	deadline := s.opts.PingInterval * 2
	_ = s.conn.SetReadDeadline(time.Now().Add(deadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			logger.Debug("session_read_closed", "user", s.userID, "error", err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(deadline))
		var f inboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Event {
		case KindTyping, KindStopTyping:
			if relay != nil && f.Data.ReceiverID != "" {
				relay(f.Event, f.Data.ReceiverID)
			}
		}
	}
}

// Ping probes the connection; used by the maintenance sweep to detect
// dead sessions the read loop has not noticed yet.
func (s *Session) Ping() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout))
}

// Close tears the session down exactly once: pumps stop and the socket is
// closed. Pending buffered events are discarded.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
	return nil
}
