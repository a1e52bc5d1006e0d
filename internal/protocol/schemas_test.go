package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"swarmhub.gg/internal/protocol"
)

// Marshals real message values and checks them against the published
// schemas, so the struct tags and the schemas cannot drift apart.
func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	roundtrip := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(roundtrip(v)); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	eventSchema := compile("event.schema.json")
	historySchema := compile("history.schema.json")
	eventMsgSchema := compile("event_msg.schema.json")
	chatInSchema := compile("chat_in.schema.json")
	actionInSchema := compile("action_in.schema.json")

	ev := protocol.Event{
		ID:        "evt_7",
		Kind:      protocol.KindChat,
		Timestamp: 1700000000.5,
		Source:    "agent_ab12cd34",
		Payload:   map[string]any{"agent_name": "Scout", "message": "hello"},
	}
	validate(eventSchema, ev)

	validate(historySchema, protocol.HistoryMsg{
		Type:   protocol.TypeHistory,
		Events: []protocol.Event{ev},
	})

	validate(eventMsgSchema, protocol.EventMsg{
		Type:  protocol.TypeEvent,
		Event: ev,
	})

	validate(chatInSchema, protocol.ChatInMsg{
		Type:    protocol.TypeChat,
		Message: "hello",
	})

	validate(actionInSchema, protocol.ActionInMsg{
		Type:   protocol.TypeAction,
		Action: "move",
		Params: map[string]any{"x": 10.0, "y": -4.0},
	})
}

func TestSchemas_RejectBadEvent(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "event.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var bad any
	_ = json.Unmarshal([]byte(`{
	  "id":"not-an-event-id",
	  "type":"chat",
	  "timestamp":1.0,
	  "source":"system",
	  "data":{}
	}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("bad event id accepted")
	}

	var wrongKind any
	_ = json.Unmarshal([]byte(`{
	  "id":"evt_1",
	  "type":"teleport",
	  "timestamp":1.0,
	  "source":"system",
	  "data":{}
	}`), &wrongKind)
	if err := s.Validate(wrongKind); err == nil {
		t.Fatalf("unknown event type accepted")
	}
}
