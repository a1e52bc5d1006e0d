package registry

import (
	"strings"
	"testing"
)

func TestRegister_UniqueIDsAndPalette(t *testing.T) {
	r := New()
	seen := map[string]bool{}
	colors := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		a := r.Register("bot", "")
		if !strings.HasPrefix(a.ID, "agent_") {
			t.Fatalf("bad id %q", a.ID)
		}
		if seen[a.ID] {
			t.Fatalf("duplicate id %s", a.ID)
		}
		seen[a.ID] = true
		if !a.Connected {
			t.Fatalf("fresh agent not connected")
		}
		colors = append(colors, a.Color)
	}
	// Round-robin wraps after the palette is exhausted.
	if colors[0] != colors[len(palette)] {
		t.Fatalf("palette did not wrap: %v", colors)
	}
	if colors[0] == colors[1] {
		t.Fatalf("consecutive agents share a color: %v", colors)
	}
}

func TestRegister_ExplicitColorKept(t *testing.T) {
	r := New()
	a := r.Register("bot", "magenta")
	if a.Color != "magenta" {
		t.Fatalf("color=%q, want magenta", a.Color)
	}
	// Explicit colors do not consume palette slots.
	b := r.Register("bot2", "")
	if b.Color != palette[0] {
		t.Fatalf("color=%q, want %q", b.Color, palette[0])
	}
}

func TestBindBody_RejectsRebindWhileConnected(t *testing.T) {
	r := New()
	a := r.Register("first", "")
	b := r.Register("second", "")

	if !r.BindBody(a.ID, 42) {
		t.Fatalf("initial bind failed")
	}
	if !r.BindBody(a.ID, 42) {
		t.Fatalf("idempotent rebind to holder failed")
	}
	if r.BindBody(b.ID, 42) {
		t.Fatalf("handle rebound to a different agent while holder connected")
	}

	// Once the holder disconnects the handle may move.
	r.Disconnect(a.ID)
	if !r.BindBody(b.ID, 42) {
		t.Fatalf("rebind after holder disconnect failed")
	}
}

func TestBindBody_UnknownAgentNoOp(t *testing.T) {
	r := New()
	if r.BindBody("agent_missing", 7) {
		t.Fatalf("bind to unknown agent succeeded")
	}
}

func TestUpdatePosition(t *testing.T) {
	r := New()
	a := r.Register("bot", "")

	r.UpdatePosition("agent_missing", 1, 2) // no-op

	before, _ := r.Get(a.ID)
	r.UpdatePosition(a.ID, 10.5, -3.25)
	got, _ := r.Get(a.ID)
	if !got.HasPos || got.X != 10.5 || got.Y != -3.25 {
		t.Fatalf("position not set: %+v", got)
	}
	if got.LastSeen.Before(before.LastSeen) {
		t.Fatalf("last_seen not refreshed")
	}
}

func TestDisconnect_KeepsRecord(t *testing.T) {
	r := New()
	a := r.Register("bot", "")
	b := r.Register("other", "")

	gone, ok := r.Disconnect(a.ID)
	if !ok || gone.ID != a.ID {
		t.Fatalf("disconnect: %+v ok=%v", gone, ok)
	}
	if _, ok := r.Disconnect("agent_missing"); ok {
		t.Fatalf("disconnect of unknown agent reported ok")
	}

	got, ok := r.Get(a.ID)
	if !ok {
		t.Fatalf("disconnected agent was deleted")
	}
	if got.Connected {
		t.Fatalf("agent still marked connected")
	}

	connected := r.ConnectedAgents()
	if len(connected) != 1 || connected[0].ID != b.ID {
		t.Fatalf("connected list: %+v", connected)
	}
	if len(r.All()) != 2 {
		t.Fatalf("All() should keep stale agents")
	}

	r.Connect(a.ID)
	if got, _ := r.Get(a.ID); !got.Connected {
		t.Fatalf("reconnect did not stick")
	}
}
