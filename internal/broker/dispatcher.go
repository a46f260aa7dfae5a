package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
	"github.com/pixelle-ai/mcp-broker/internal/session"
)

// DefaultRoom is joined when a join_room payload names no room.
const DefaultRoom = "default"

// HandlerFunc processes one inbound envelope for a session. A returned
// error is reported to that session as an error envelope; it never closes
// the connection or leaks to other sessions.
type HandlerFunc func(s *session.Session, e protocol.Envelope) error

// Dispatcher routes inbound envelopes to handlers by type tag.
type Dispatcher struct {
	registry *session.Registry
	handlers map[protocol.MessageType]HandlerFunc
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher with the built-in handlers registered.
func NewDispatcher(registry *session.Registry, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		handlers: make(map[protocol.MessageType]HandlerFunc),
		log:      log.With().Str("component", "dispatcher").Logger(),
	}

	d.Register(protocol.MessageTypePing, d.handlePing)
	d.Register(protocol.MessageTypeChatMessage, d.handleChatMessage)
	d.Register(protocol.MessageTypeToolCall, d.handleToolCall)
	d.Register(protocol.MessageTypeJoinRoom, d.handleJoinRoom)
	d.Register(protocol.MessageTypeLeaveRoom, d.handleLeaveRoom)
	d.Register(protocol.MessageTypeBroadcast, d.handleBroadcast)
	d.Register(protocol.MessageTypeRoomMessage, d.handleRoomMessage)
	return d
}

// Register installs a handler for a message type, replacing any previous one.
func (d *Dispatcher) Register(t protocol.MessageType, fn HandlerFunc) {
	d.handlers[t] = fn
}

// Dispatch records the envelope and routes it to its handler. Every failure
// mode (unknown type, handler error, handler panic) is isolated to the
// originating session and answered with an error envelope.
func (d *Dispatcher) Dispatch(s *session.Session, e protocol.Envelope) {
	s.Record(e)
	d.log.Debug().Str("client_id", s.ID()).Str("type", string(e.Type)).Msg("message received")

	handler, ok := d.handlers[e.Type]
	if !ok {
		d.sendError(s, fmt.Sprintf("unsupported message type: %s", e.Type))
		return
	}

	if err := d.invoke(handler, s, e); err != nil {
		d.log.Error().Err(err).Str("client_id", s.ID()).Str("type", string(e.Type)).Msg("handler failed")
		d.sendError(s, err.Error())
	}
}

// invoke runs the handler, converting a panic into an ordinary error so one
// bad message cannot take the connection down.
func (d *Dispatcher) invoke(fn HandlerFunc, s *session.Session, e protocol.Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return fn(s, e)
}

func (d *Dispatcher) sendError(s *session.Session, message string) {
	if err := s.Send(protocol.NewError(message)); err != nil && !errors.Is(err, session.ErrSessionClosed) {
		d.log.Warn().Err(err).Str("client_id", s.ID()).Msg("failed to send error envelope")
	}
}

func (d *Dispatcher) handlePing(s *session.Session, _ protocol.Envelope) error {
	return s.Send(protocol.New(protocol.MessageTypePong, map[string]any{
		"timestamp": time.Now().Format(time.RFC3339Nano),
	}))
}

// handleChatMessage models an asynchronous-looking exchange over a
// synchronous handler: processing is always sent before chat_response.
func (d *Dispatcher) handleChatMessage(s *session.Session, e protocol.Envelope) error {
	content, _ := e.StringField("content")

	if err := s.Send(protocol.New(protocol.MessageTypeProcessing, map[string]any{
		"status": "processing message",
	})); err != nil {
		return err
	}

	return s.Send(protocol.New(protocol.MessageTypeChatResponse, map[string]any{
		"content":   fmt.Sprintf("server received: %s", content),
		"status":    "completed",
		"timestamp": time.Now().Format(time.RFC3339Nano),
	}))
}

func (d *Dispatcher) handleToolCall(s *session.Session, e protocol.Envelope) error {
	toolName, ok := e.StringField("tool_name")
	if !ok || toolName == "" {
		return errors.New("tool_name is required")
	}
	params, ok := e.MapField("params")
	if !ok {
		params = map[string]any{}
	}

	return s.Send(protocol.New(protocol.MessageTypeToolResponse, map[string]any{
		"tool_name": toolName,
		"params":    params,
		"result":    fmt.Sprintf("tool %s completed", toolName),
		"status":    "completed",
	}))
}

func (d *Dispatcher) handleJoinRoom(s *session.Session, e protocol.Envelope) error {
	room, _ := e.StringField("room")
	if room == "" {
		room = DefaultRoom
	}
	if !d.registry.JoinRoom(room, s.ID()) {
		return fmt.Errorf("cannot join room %s: session not registered", room)
	}

	return s.Send(protocol.New(protocol.MessageTypeRoomJoined, map[string]any{
		"room":    room,
		"message": fmt.Sprintf("joined room: %s", room),
	}))
}

func (d *Dispatcher) handleLeaveRoom(s *session.Session, e protocol.Envelope) error {
	room, _ := e.StringField("room")
	if room == "" {
		room = DefaultRoom
	}
	d.registry.LeaveRoom(room, s.ID())

	return s.Send(protocol.New(protocol.MessageTypeRoomLeft, map[string]any{
		"room":    room,
		"message": fmt.Sprintf("left room: %s", room),
	}))
}

func (d *Dispatcher) handleBroadcast(s *session.Session, e protocol.Envelope) error {
	message, _ := e.StringField("message")

	delivered := d.registry.Broadcast(protocol.New(protocol.MessageTypeBroadcastMessage, map[string]any{
		"from":      s.ID(),
		"message":   message,
		"timestamp": time.Now().Format(time.RFC3339Nano),
	}), nil)
	d.log.Debug().Str("client_id", s.ID()).Int("delivered", delivered).Msg("broadcast")
	return nil
}

func (d *Dispatcher) handleRoomMessage(s *session.Session, e protocol.Envelope) error {
	room, _ := e.StringField("room")
	if room == "" {
		room = DefaultRoom
	}
	message, _ := e.StringField("message")

	delivered := d.registry.BroadcastRoom(room, protocol.New(protocol.MessageTypeRoomMessage, map[string]any{
		"from":      s.ID(),
		"room":      room,
		"message":   message,
		"timestamp": time.Now().Format(time.RFC3339Nano),
	}))
	d.log.Debug().Str("client_id", s.ID()).Str("room", room).Int("delivered", delivered).Msg("room message")
	return nil
}
