// Package broker provides WebSocket connection handling and message routing
// for client sessions.
//
// The package implements:
//   - Broker: Upgrades HTTP requests and runs the per-connection read loop
//   - Dispatcher: Routes decoded envelopes to typed message handlers
//
// Key features:
//   - Handshake: Sends connection_established with the assigned client id
//   - Ordered delivery: One writer goroutine per session preserves send order
//   - Error isolation: A malformed or panicking message never drops the session
//   - Room fan-out: join_room/leave_room membership with room-scoped broadcast
package broker
