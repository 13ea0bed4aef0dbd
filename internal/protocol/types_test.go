package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecode_Register(t *testing.T) {
	data := []byte(`{"type":"register","msg":{"display_name":"alice"}}`)

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Type != EventRegister {
		t.Errorf("Type = %q, want %q", env.Type, EventRegister)
	}

	var msg RegisterMsg
	if err := json.Unmarshal(env.Msg, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want %q", msg.DisplayName, "alice")
	}
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"msg":{}}`))
	if err == nil {
		t.Error("expected error for missing type")
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	if err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestEncode_NoPayload(t *testing.T) {
	data, err := Encode(EventHeartbeat, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Type != EventHeartbeat {
		t.Errorf("Type = %q, want %q", env.Type, EventHeartbeat)
	}
	if len(env.Msg) != 0 {
		t.Errorf("Msg = %q, want empty", env.Msg)
	}
}

func TestEncode_WatchRequest_OptionalMonitor(t *testing.T) {
	// Without monitor the field must be absent, not zero.
	data, err := Encode(EventWatchRequest, WatchRequestMsg{TargetID: "abc"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	env, _ := Decode(data)
	if err := json.Unmarshal(env.Msg, &raw); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if _, ok := raw["monitor"]; ok {
		t.Error("monitor should be omitted when nil")
	}

	mon := 1
	data, _ = Encode(EventWatchRequest, WatchRequestMsg{TargetID: "abc", Monitor: &mon})
	env, _ = Decode(data)
	var msg WatchRequestMsg
	if err := json.Unmarshal(env.Msg, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.Monitor == nil || *msg.Monitor != 1 {
		t.Errorf("Monitor = %v, want 1", msg.Monitor)
	}
}

func TestEncode_FrameRoundTrip(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff, 0x00, 0x01}
	data, err := Encode(EventFullFrame, FullFrameMsg{SourceID: "src", Image: img})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	var msg FullFrameMsg
	if err := json.Unmarshal(env.Msg, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if string(msg.Image) != string(img) {
		t.Errorf("Image = %v, want %v", msg.Image, img)
	}
	if msg.Monitor != nil {
		t.Errorf("Monitor = %v, want nil", msg.Monitor)
	}
}
