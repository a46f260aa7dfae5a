// Package session provides per-connection state and the process-wide
// registry of live WebSocket clients.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/buffer"
	"github.com/pixelle-ai/mcp-broker/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	// ErrSessionClosed is returned by Send after the session has been closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrSendBufferFull is returned by Send when the outbound queue is full;
	// the session is torn down since the peer is not draining it.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Session represents one live client connection. It exclusively owns its
// transport: the write pump is the only goroutine that writes to or closes
// the connection.
type Session struct {
	id          string
	conn        *websocket.Conn
	connectedAt time.Time
	history     *buffer.History
	send        chan []byte
	log         zerolog.Logger

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
}

// NewSession creates a session with a fresh unique id.
func NewSession(conn *websocket.Conn, historyLimit int, log zerolog.Logger) *Session {
	id := uuid.New().String()
	now := time.Now()
	return &Session{
		id:           id,
		conn:         conn,
		connectedAt:  now,
		lastActivity: now,
		history:      buffer.NewHistory(historyLimit),
		send:         make(chan []byte, 256),
		log:          log.With().Str("client_id", id).Logger(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Conn returns the underlying WebSocket connection. The read loop is its
// only consumer; all writes go through Send and the write pump.
func (s *Session) Conn() *websocket.Conn {
	return s.conn
}

// ConnectedAt returns the time the session was registered.
func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

// LastActivity returns the time of the last inbound or outbound envelope.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Send serializes the envelope and queues it for the write pump. Sends are
// best-effort from the caller's perspective: a dead peer yields an error,
// never a panic, so a broadcast is not torn down wholesale by one bad
// socket. Queued envelopes are written in the order they were sent.
func (s *Session) Send(e protocol.Envelope) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	select {
	case s.send <- data:
		s.lastActivity = time.Now()
		return nil
	default:
		// Peer is not reading; drop the session rather than block.
		s.closeLocked()
		return ErrSendBufferFull
	}
}

// Record appends an inbound envelope to the history and updates activity.
func (s *Session) Record(e protocol.Envelope) {
	s.history.Append(e)
	s.Touch()
}

// History returns a snapshot of the recorded envelopes.
func (s *Session) History() []protocol.Envelope {
	return s.history.Snapshot()
}

// MessageCount returns the number of recorded envelopes.
func (s *Session) MessageCount() int {
	return s.history.Len()
}

// Close closes the session. It is idempotent and safe to call from both the
// error path and the normal-close path.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SendChan exposes the outbound queue. Used by the write pump and by tests.
func (s *Session) SendChan() <-chan []byte {
	return s.send
}

// WritePump pumps queued messages to the WebSocket connection. It runs as
// one goroutine per session and is the sole writer to the transport; it
// closes the transport exactly once on exit.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Session closed the channel
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Each envelope goes in its own text frame so clients can
			// JSON-parse frames independently.
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Debug().Err(err).Msg("write failed, dropping session")
				return
			}

			n := len(s.send)
			for i := 0; i < n; i++ {
				queued, ok := <-s.send
				if !ok {
					s.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.conn.WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
