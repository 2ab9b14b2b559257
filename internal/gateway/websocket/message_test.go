package websocket

import (
	"encoding/json"
	"testing"
)

func TestEncode_OmitsEmptyFields(t *testing.T) {
	got := string(Encode(WSMessage{Type: TypePartial, Delta: "hi"}))
	if got != `{"type":"partial","delta":"hi"}` {
		t.Errorf("Encode = %s", got)
	}
}

func TestFrame(t *testing.T) {
	data, err := Frame(TypePlanning, "s", map[string]string{"stage": "intent", "status": "running"})
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != TypePlanning || msg.Session != "s" {
		t.Errorf("msg = %+v", msg)
	}
	if string(msg.Data) != `{"stage":"intent","status":"running"}` {
		t.Errorf("data = %s", msg.Data)
	}

	if _, err := Frame(TypeTool, "", func() {}); err == nil {
		t.Error("expected marshal error for a func payload")
	}
}
