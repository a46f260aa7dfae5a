// Package protocol defines the typed message envelope exchanged over WebSocket.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type tag of an envelope.
type MessageType string

const (
	// Client -> Server message types
	MessageTypePing        MessageType = "ping"
	MessageTypeChatMessage MessageType = "chat_message"
	MessageTypeToolCall    MessageType = "tool_call"
	MessageTypeJoinRoom    MessageType = "join_room"
	MessageTypeLeaveRoom   MessageType = "leave_room"
	MessageTypeBroadcast   MessageType = "broadcast"
	MessageTypeRoomMessage MessageType = "room_message"

	// Server -> Client message types
	MessageTypeConnectionEstablished MessageType = "connection_established"
	MessageTypePong                  MessageType = "pong"
	MessageTypeProcessing            MessageType = "processing"
	MessageTypeChatResponse          MessageType = "chat_response"
	MessageTypeToolResponse          MessageType = "tool_response"
	MessageTypeRoomJoined            MessageType = "room_joined"
	MessageTypeRoomLeft              MessageType = "room_left"
	MessageTypeBroadcastMessage      MessageType = "broadcast_message"
	MessageTypeError                 MessageType = "error"
)

// ErrMalformed is returned by Decode for input that is not valid JSON.
var ErrMalformed = errors.New("malformed message")

// ErrMissingType is returned by Decode when the type tag is empty.
var ErrMissingType = errors.New("message type is required")

// Envelope is the unit of WebSocket communication. Data carries the
// semi-structured payload and may be nil.
type Envelope struct {
	Type      MessageType    `json:"type"`
	Data      map[string]any `json:"data"`
	MessageID string         `json:"message_id"`
	Timestamp string         `json:"timestamp"`
}

// New creates an envelope with a fresh message id and the current timestamp.
func New(msgType MessageType, data map[string]any) Envelope {
	return Envelope{
		Type:      msgType,
		Data:      data,
		MessageID: uuid.New().String(),
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
}

// NewError creates an error envelope with the given message.
func NewError(message string) Envelope {
	return New(MessageTypeError, map[string]any{"error": message})
}

// Encode serializes the envelope as UTF-8 JSON. Non-ASCII characters are
// emitted literally, never as escape sequences; some consumers depend on
// receiving raw UTF-8.
func (e Envelope) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses an envelope from UTF-8 JSON. It never panics: malformed
// input yields ErrMalformed and a missing type tag yields ErrMissingType,
// so the call site can answer with an error envelope instead of dropping
// the connection. A missing message id or timestamp is filled in.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Type == "" {
		return Envelope{}, ErrMissingType
	}
	if e.MessageID == "" {
		e.MessageID = uuid.New().String()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().Format(time.RFC3339Nano)
	}
	return e, nil
}

// StringField returns the string payload field for key.
func (e Envelope) StringField(key string) (string, bool) {
	if e.Data == nil {
		return "", false
	}
	v, ok := e.Data[key].(string)
	return v, ok
}

// MapField returns the object payload field for key.
func (e Envelope) MapField(key string) (map[string]any, bool) {
	if e.Data == nil {
		return nil, false
	}
	v, ok := e.Data[key].(map[string]any)
	return v, ok
}
