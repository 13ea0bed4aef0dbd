// Package registry implements the Session Registry component.
//
// The Session Registry:
//   - Tracks every live connection id in exactly one state:
//     Unclassified, PendingRegistration, RegisteredCapture, or Viewer
//   - Stores capture-client metadata (display name, display list)
//   - Keeps the heartbeat record inside the session entry so record and
//     heartbeat are created and removed atomically
//   - Provides the broadcast destination set in stable insertion order
package registry
