// Package capture implements the agent side of the relay: it grabs screen
// frames, encodes them, and streams them to the relay over WebSocket.
//
// The agent:
//   - Registers on connect (register + displays handshake)
//   - Streams full frames (JPEG, fast cadence) and preview frames (PNG,
//     slow cadence) of the selected monitor
//   - Sends heartbeats so the relay keeps the session alive
//   - Obeys switch-monitor and please-register events from the relay
//   - Reconnects with exponential backoff when the relay drops
package capture
