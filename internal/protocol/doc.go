// Package protocol defines the wire event types exchanged between the relay
// server, capture agents, and viewers.
//
// Every message is a JSON envelope:
//
//	{"type": "<event>", "msg": {...}}
//
// Conventions:
//   - Image payloads are opaque byte sequences (base64 in JSON); the relay
//     never decodes them.
//   - Monitor indices are zero-based and pointer-typed where optional.
//   - Connection ids are UUID strings assigned by the relay transport.
package protocol
