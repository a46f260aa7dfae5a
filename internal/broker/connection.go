package broker

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
	"github.com/pixelle-ai/mcp-broker/internal/session"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// State is the lifecycle state of one broker connection.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

// Broker accepts WebSocket connections, registers sessions, and runs the
// per-connection read loop feeding the dispatcher. Message handling within
// a connection is sequential: one envelope is processed to completion,
// including all of its replies, before the next is read.
type Broker struct {
	registry   *session.Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

// NewBroker creates a broker around the given registry and dispatcher.
func NewBroker(registry *session.Registry, dispatcher *Dispatcher, log zerolog.Logger) *Broker {
	return &Broker{
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The broker exists to serve browser clients across origins.
				return true
			},
		},
		log: log.With().Str("component", "broker").Logger(),
	}
}

// Registry returns the broker's session registry.
func (b *Broker) Registry() *session.Registry {
	return b.registry
}

// HandleUpgrade upgrades the HTTP request and serves the connection until
// it closes.
func (b *Broker) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	b.HandleConnection(conn)
	return nil
}

// HandleConnection runs the connection lifecycle:
// connecting -> open -> closing -> closed. The handshake contract is that
// the first envelope a client receives is connection_established carrying
// its assigned id and the server time.
func (b *Broker) HandleConnection(conn *websocket.Conn) {
	state := StateConnecting

	sess := b.registry.Register(conn)
	go sess.WritePump()

	if err := sess.Send(protocol.New(protocol.MessageTypeConnectionEstablished, map[string]any{
		"client_id":   sess.ID(),
		"server_time": time.Now().Format(time.RFC3339Nano),
	})); err != nil {
		b.log.Warn().Err(err).Str("client_id", sess.ID()).Msg("handshake send failed")
		b.teardown(sess, &state)
		return
	}
	state = StateOpen

	b.readPump(sess)

	b.teardown(sess, &state)
}

// teardown completes closing -> closed by unregistering the session. Both
// the error path and the normal-close path funnel through here; Unregister
// tolerates the second call.
func (b *Broker) teardown(sess *session.Session, state *State) {
	*state = StateClosing
	b.registry.Unregister(sess.ID())
	*state = StateClosed
}

// readPump reads envelopes until the transport closes or fails. Malformed
// JSON and per-message handler failures are answered with error envelopes
// and do not end the loop; only transport-level errors do.
func (b *Broker) readPump(sess *session.Session) {
	conn := sess.Conn()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				b.log.Warn().Err(err).Str("client_id", sess.ID()).Msg("read failed")
			}
			return
		}

		env, err := protocol.Decode(message)
		if err != nil {
			b.log.Debug().Err(err).Str("client_id", sess.ID()).Msg("undecodable message")
			if sendErr := sess.Send(protocol.NewError("invalid message format")); sendErr != nil && !errors.Is(sendErr, session.ErrSessionClosed) {
				return
			}
			continue
		}

		b.dispatcher.Dispatch(sess, env)
	}
}
