// Package relay implements the relay core: the Fan-out Router and the
// Relay Coordinator.
//
// The Router delivers frames and registry notices:
//   - Broadcast: best-effort, non-blocking delivery to a destination set in
//     stable insertion order, mirrored to an optional operator sink. A frame
//     that cannot be delivered to a slow consumer is dropped; the next frame
//     supersedes it (latest-wins).
//   - Targeted: exactly-one delivery to a capture client by id; a vanished
//     target is a silent no-op.
//
// The Coordinator classifies connections, drives the Session Registry state
// machine, arms the registration timer, and owns the Heartbeat Monitor.
package relay
