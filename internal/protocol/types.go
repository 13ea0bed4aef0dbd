package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType identifies an envelope's payload shape.
type EventType string

// Inbound events (agent or viewer → relay).
const (
	EventRegister     EventType = "register"
	EventDisplays     EventType = "displays"
	EventHeartbeat    EventType = "heartbeat"
	EventPreviewFrame EventType = "preview-frame"
	EventFullFrame    EventType = "full-frame"
	EventWatchRequest EventType = "watch-request"
	EventListClients  EventType = "list-clients"
)

// Outbound events (relay → agent or viewer).
const (
	EventClientRegistered EventType = "client-registered"
	EventClientDeparted   EventType = "client-departed"
	EventSwitchMonitor    EventType = "switch-monitor"
	EventPleaseRegister   EventType = "please-register"
)

// Envelope is the wire frame for every event.
type Envelope struct {
	Type EventType       `json:"type"`
	Msg  json.RawMessage `json:"msg,omitempty"`
}

// Decode parses a raw wire message into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Encode marshals an event type and payload into wire bytes.
func Encode(t EventType, payload any) ([]byte, error) {
	var msg json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		msg = raw
	}
	data, err := json.Marshal(Envelope{Type: t, Msg: msg})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", t, err)
	}
	return data, nil
}

// MustEncode is Encode for payloads that cannot fail to marshal.
// It panics on error and is reserved for internally constructed payloads.
func MustEncode(t EventType, payload any) []byte {
	data, err := Encode(t, payload)
	if err != nil {
		panic(err)
	}
	return data
}

// Display describes one screen exposed by a capture client.
type Display struct {
	Index int    `json:"index"`
	Label string `json:"label,omitempty"`
}

// RegisterMsg is the payload for a "register" event.
type RegisterMsg struct {
	DisplayName string `json:"display_name"`
}

// DisplaysMsg is the payload for a "displays" event.
type DisplaysMsg struct {
	Displays []Display `json:"displays"`
}

// PreviewFrameMsg is the payload for a "preview-frame" event.
// SourceID is empty inbound; the relay stamps it before fan-out.
type PreviewFrameMsg struct {
	SourceID string `json:"source_id,omitempty"`
	Image    []byte `json:"image"`
}

// FullFrameMsg is the payload for a "full-frame" event.
type FullFrameMsg struct {
	SourceID string `json:"source_id,omitempty"`
	Image    []byte `json:"image"`
	Monitor  *int   `json:"monitor,omitempty"`
}

// WatchRequestMsg is the payload for a viewer's "watch-request" event.
type WatchRequestMsg struct {
	TargetID string `json:"target_id"`
	Monitor  *int   `json:"monitor,omitempty"`
}

// ClientRegisteredMsg announces a capture client (new or updated) to viewers.
type ClientRegisteredMsg struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Displays    []Display `json:"displays"`
}

// ClientDepartedMsg announces a capture client's departure to viewers.
type ClientDepartedMsg struct {
	ID string `json:"id"`
}

// SwitchMonitorMsg instructs a capture client to stream a different monitor.
type SwitchMonitorMsg struct {
	Monitor int `json:"monitor"`
}

// PleaseRegisterMsg prompts a connection to (re-)register as a capture client.
type PleaseRegisterMsg struct {
	Reason string `json:"reason,omitempty"`
}
