package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
)

// Predicate selects sessions for a broadcast. A nil predicate matches all.
type Predicate func(*Session) bool

// SessionInfo is the per-session metadata exposed by Stats.
type SessionInfo struct {
	ClientID     string    `json:"client_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Count    int           `json:"count"`
	Sessions []SessionInfo `json:"sessions"`
}

// Registry is the process-wide table of active sessions, keyed by session
// id. A session is present if and only if its transport is believed open.
// A single lock guards registration, rooms and broadcast snapshots;
// contention is bounded by client count and nothing CPU-heavy runs under it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]struct{}

	historyLimit int
	log          zerolog.Logger
}

// NewRegistry creates an empty registry. historyLimit bounds each session's
// message history.
func NewRegistry(historyLimit int, log zerolog.Logger) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		rooms:        make(map[string]map[string]struct{}),
		historyLimit: historyLimit,
		log:          log.With().Str("component", "registry").Logger(),
	}
}

// Register allocates a fresh session for the transport and stores it. Safe
// under concurrent registration from simultaneously-connecting clients.
func (r *Registry) Register(conn *websocket.Conn) *Session {
	s := NewSession(conn, r.historyLimit, r.log)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Info().Str("client_id", s.ID()).Int("connected", count).Msg("client connected")
	return s
}

// Unregister removes the session and its room memberships, then closes it.
// It is a no-op when the id is absent, so the error path and the
// normal-close path may both fire.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	for name, members := range r.rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, name)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	r.log.Info().Str("client_id", id).Int("connected", count).Msg("client disconnected")
}

// Lookup returns the session for id, if present.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot returns the current sessions without holding the lock during
// iteration, so a disconnect mid-broadcast cannot corrupt the loop.
func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

// Broadcast sends the envelope to every registered session matching the
// predicate. A failed send removes that session best-effort and does not
// abort delivery to the rest. Returns the number of successful deliveries.
func (r *Registry) Broadcast(e protocol.Envelope, match Predicate) int {
	delivered := 0
	for _, s := range r.snapshot() {
		if match != nil && !match(s) {
			continue
		}
		if err := s.Send(e); err != nil {
			r.log.Warn().Err(err).Str("client_id", s.ID()).Msg("broadcast send failed")
			r.Unregister(s.ID())
			continue
		}
		delivered++
	}
	return delivered
}

// Stats returns a point-in-time view of the registry for observability.
func (r *Registry) Stats() Stats {
	sessions := r.snapshot()
	return Stats{
		Count: len(sessions),
		Sessions: lo.Map(sessions, func(s *Session, _ int) SessionInfo {
			return SessionInfo{
				ClientID:     s.ID(),
				ConnectedAt:  s.ConnectedAt(),
				LastActivity: s.LastActivity(),
				MessageCount: s.MessageCount(),
			}
		}),
	}
}

// CloseAll closes every session and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := lo.Values(r.sessions)
	r.sessions = make(map[string]*Session)
	r.rooms = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
