// Package relay implements a transparent bidirectional WebSocket forwarder.
// It lets a browser reach a backend WebSocket endpoint it cannot connect to
// directly because of cross-origin restrictions.
package relay

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Relay pairs each accepted client connection with a fresh outbound
// connection to a fixed target endpoint and pipes frames both ways without
// touching them.
type Relay struct {
	targetURL string
	upgrader  websocket.Upgrader
	dialer    *websocket.Dialer
	log       zerolog.Logger
}

// New creates a relay forwarding to targetURL (a ws:// or wss:// URL).
func New(targetURL string, log zerolog.Logger) *Relay {
	return &Relay{
		targetURL: targetURL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Cross-origin browser clients are the point of the relay.
				return true
			},
		},
		dialer: websocket.DefaultDialer,
		log:    log.With().Str("component", "relay").Logger(),
	}
}

// TargetURL returns the fixed endpoint this relay forwards to.
func (r *Relay) TargetURL() string {
	return r.targetURL
}

// HandleUpgrade upgrades the client request, dials the target, and blocks
// until the pairing tears down.
func (r *Relay) HandleUpgrade(w http.ResponseWriter, req *http.Request) error {
	client, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}

	target, _, err := r.dialer.DialContext(req.Context(), r.targetURL, nil)
	if err != nil {
		r.log.Error().Err(err).Str("target", r.targetURL).Msg("failed to dial target")
		client.Close()
		return err
	}
	r.log.Info().Str("remote", req.RemoteAddr).Str("target", r.targetURL).Msg("pairing established")

	r.Pipe(req.Context(), client, target)
	r.log.Info().Str("remote", req.RemoteAddr).Msg("pairing closed")
	return nil
}

// Pipe runs the two forwarding directions concurrently and returns when
// both have terminated. The pairing tears down as a unit: the first
// direction to finish (close or error, the relay does not distinguish)
// closes both transports, which unblocks the sibling's pending read.
func (r *Relay) Pipe(ctx context.Context, client, target *websocket.Conn) {
	p := &pair{client: client, target: target, log: r.log}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.forward(client, target, "client->target")
	}()
	go func() {
		defer wg.Done()
		p.forward(target, client, "target->client")
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.teardown()
		<-done
	case <-done:
	}
	p.teardown()
}

// pair is one client/target pairing. teardown closes both transports
// exactly once.
type pair struct {
	client *websocket.Conn
	target *websocket.Conn
	once   sync.Once
	log    zerolog.Logger
}

// forward is a tight receive-one, send-one loop with no transformation:
// frame type and payload pass through byte-identical.
func (p *pair) forward(src, dst *websocket.Conn, direction string) {
	defer p.teardown()

	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug().Str("direction", direction).Msg("peer closed")
			} else {
				p.log.Debug().Err(err).Str("direction", direction).Msg("forward read ended")
			}
			return
		}
		if err := dst.WriteMessage(msgType, data); err != nil {
			p.log.Debug().Err(err).Str("direction", direction).Msg("forward write ended")
			return
		}
	}
}

func (p *pair) teardown() {
	p.once.Do(func() {
		p.client.Close()
		p.target.Close()
	})
}
