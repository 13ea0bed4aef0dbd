// Package transport implements the WebSocket boundary of the relay.
//
// The transport:
//   - Accepts WebSocket upgrades on /ws and assigns each peer a UUID
//   - Delivers connection lifecycle and inbound messages to a Handler
//   - Writes outbound payloads through a buffered per-peer send channel;
//     TrySend never blocks and drops under pressure
//
// The relay core never touches a websocket.Conn directly; it only sees
// Peer handles.
package transport
