package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"swarmhub.gg/internal/bridge"
	"swarmhub.gg/internal/eventlog"
	"swarmhub.gg/internal/hub"
	"swarmhub.gg/internal/protocol"
	"swarmhub.gg/internal/registry"
	"swarmhub.gg/internal/transport/ws"
)

const testKey = "test-secret"

type fakeChannel struct{}

func (fakeChannel) Execute(context.Context, string) (string, error) { return "", nil }

func newTestHub() *hub.Hub {
	logger := log.New(io.Discard, "", 0)
	return hub.New(hub.Config{AnchorPlayer: "terranix"},
		eventlog.New(100), registry.New(), bridge.New(fakeChannel{}, logger), logger)
}

func newTestServer(t *testing.T, h *hub.Hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{agent_id}", ws.NewServer(h, testKey, log.New(io.Discard, "", 0)).Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, agentID string) string {
	return strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws/" + agentID + "?api_key=" + testKey
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestSession_HistoryThenNewEventsOnly(t *testing.T) {
	h := newTestHub()
	agent := h.Registry().Register("Bot", "")
	for i := 1; i <= 5; i++ {
		h.Events().Add(protocol.KindGameEvent, protocol.SourceSystem, map[string]any{"n": i})
	}
	srv := newTestServer(t, h)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, agent.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var history protocol.HistoryMsg
	if err := json.Unmarshal(readMessage(t, conn), &history); err != nil {
		t.Fatalf("history: %v", err)
	}
	if history.Type != protocol.TypeHistory || len(history.Events) != 5 {
		t.Fatalf("history: type=%q events=%d", history.Type, len(history.Events))
	}
	if history.Events[0].ID != "evt_1" || history.Events[4].ID != "evt_5" {
		t.Fatalf("history ids: %s..%s", history.Events[0].ID, history.Events[4].ID)
	}

	// A new event arrives as exactly one push, never a replay.
	added := h.Events().Add(protocol.KindGameEvent, protocol.SourceSystem, map[string]any{"n": 6})
	var push protocol.EventMsg
	if err := json.Unmarshal(readMessage(t, conn), &push); err != nil {
		t.Fatalf("event msg: %v", err)
	}
	if push.Type != protocol.TypeEvent || push.Event.ID != added.ID {
		t.Fatalf("push: %+v", push)
	}
}

func TestSession_InboundChatRoutedAndEchoedBack(t *testing.T) {
	h := newTestHub()
	agent := h.Registry().Register("Bot", "")
	srv := newTestServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, agent.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var history protocol.HistoryMsg
	if err := json.Unmarshal(readMessage(t, conn), &history); err != nil {
		t.Fatalf("history: %v", err)
	}

	in := protocol.ChatInMsg{Type: protocol.TypeChat, Message: "from ws"}
	if err := conn.WriteJSON(in); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The chat lands in the log and streams back through our own cursor.
	var push protocol.EventMsg
	if err := json.Unmarshal(readMessage(t, conn), &push); err != nil {
		t.Fatalf("event: %v", err)
	}
	if push.Event.Kind != protocol.KindChat || push.Event.Source != agent.ID {
		t.Fatalf("event: %+v", push.Event)
	}
	if push.Event.Payload["message"] != "from ws" {
		t.Fatalf("payload: %+v", push.Event.Payload)
	}
}

func TestSession_InboundAction(t *testing.T) {
	h := newTestHub()
	agent := h.Registry().Register("Bot", "")
	srv := newTestServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, agent.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readMessage(t, conn) // history

	in := protocol.ActionInMsg{Type: protocol.TypeAction, Action: "say", Params: map[string]any{"message": "hi"}}
	if err := conn.WriteJSON(in); err != nil {
		t.Fatalf("write: %v", err)
	}

	var push protocol.EventMsg
	if err := json.Unmarshal(readMessage(t, conn), &push); err != nil {
		t.Fatalf("event: %v", err)
	}
	if push.Event.Kind != protocol.KindAgentAction || push.Event.Payload["action"] != "say" {
		t.Fatalf("event: %+v", push.Event)
	}
}

func TestSession_DisconnectEmitsLeave(t *testing.T) {
	h := newTestHub()
	agent := h.Registry().Register("Bot", "")
	srv := newTestServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, agent.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readMessage(t, conn) // history
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := h.Registry().Get(agent.ID)
		if !got.Connected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent still connected after close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var leave bool
	for _, ev := range h.Events().Recent(10) {
		if ev.Kind == protocol.KindAgentLeave && ev.Source == agent.ID {
			leave = true
		}
	}
	if !leave {
		t.Fatalf("no agent_leave event recorded")
	}
}

func TestSession_UnknownAgentClosed(t *testing.T) {
	h := newTestHub()
	srv := newTestServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "agent_missing"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if err == nil {
		t.Fatalf("expected close")
	}
	if ok := errorsAs(err, &closeErr); !ok || closeErr.Code != 4004 {
		t.Fatalf("close err: %v", err)
	}
}

func TestSession_RejectsBadKey(t *testing.T) {
	h := newTestHub()
	agent := h.Registry().Register("Bot", "")
	srv := newTestServer(t, h)

	url := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws/" + agent.ID + "?api_key=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("dial with bad key succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp: %+v", resp)
	}
}

func errorsAs(err error, target **websocket.CloseError) bool {
	if ce, ok := err.(*websocket.CloseError); ok {
		*target = ce
		return true
	}
	return false
}
