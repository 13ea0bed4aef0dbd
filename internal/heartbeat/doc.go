// Package heartbeat implements the Heartbeat Monitor component.
//
// The Heartbeat Monitor:
//   - Sweeps the registry on a fixed interval (default 5s)
//   - Evicts capture clients whose last heartbeat is older than the
//     timeout (default 15s, 3x the sweep interval)
//   - Invokes an eviction callback per victim so the coordinator can
//     force-close the connection and notify viewers
//
// Eviction is the only reclamation path for producers that die without a
// clean disconnect; the monitor never attempts to resurrect a stale client.
package heartbeat
