// Package ws serves push sessions: history snapshot on open, then a
// stream of individual events, while accepting inbound chat and action
// messages on the same connection.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"swarmhub.gg/internal/hub"
	"swarmhub.gg/internal/protocol"
)

const (
	historySize = 20
	pushBatch   = 10

	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type Server struct {
	hub    *hub.Hub
	apiKey string
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, apiKey string, logger *log.Logger) *Server {
	return &Server{
		hub:    h,
		apiKey: apiKey,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		// Same shared secret as REST; checked before any other processing.
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != s.apiKey {
			http.Error(rw, "invalid api key", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID := r.PathValue("agent_id")
		agent, ok := s.hub.Registry().Get(agentID)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(4004, "agent not found"), time.Now().Add(time.Second))
			return
		}

		s.hub.Registry().Connect(agent.ID)
		s.hub.Metrics().PushSessions.Add(1)
		defer s.hub.Metrics().PushSessions.Add(-1)

		s.runSession(r.Context(), conn, agent.ID)

		// A disconnected session stops promptly and records the leave.
		s.hub.Disconnect(agent.ID)
	}
}

func (s *Server) runSession(parent context.Context, conn *websocket.Conn, agentID string) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine feeds inbound messages; all writes stay on the
	// session goroutine.
	inbound := make(chan []byte, 16)
	go func() {
		defer close(inbound)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	// History snapshot; the session cursor starts at its last event.
	history := s.hub.Events().Recent(historySize)
	if err := s.write(conn, protocol.HistoryMsg{Type: protocol.TypeHistory, Events: history}); err != nil {
		return
	}
	cursor := ""
	if len(history) > 0 {
		cursor = history[len(history)-1].ID
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		// Grab the notify channel before draining so an Add racing the
		// drain still wakes us.
		notify := s.hub.Events().Notify()

		for {
			events := s.hub.Events().Since(cursor, pushBatch)
			if len(events) == 0 {
				break
			}
			for _, ev := range events {
				if err := s.write(conn, protocol.EventMsg{Type: protocol.TypeEvent, Event: ev}); err != nil {
					return
				}
				cursor = ev.ID
			}
			// Keep inbound flowing between delivery batches so neither
			// side starves the other.
			select {
			case msg, ok := <-inbound:
				if !ok {
					return
				}
				s.handleInbound(ctx, agentID, msg)
			default:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-notify:
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			s.handleInbound(ctx, agentID, msg)
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleInbound(ctx context.Context, agentID string, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeChat:
		var in protocol.ChatInMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			return
		}
		if _, err := s.hub.SendChat(ctx, agentID, in.Message); err != nil {
			s.log.Printf("ws: chat from %s: %v", agentID, err)
		}
	case protocol.TypeAction:
		var in protocol.ActionInMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			return
		}
		if _, err := s.hub.DispatchAction(ctx, agentID, in.Action, in.Params); err != nil {
			s.log.Printf("ws: action from %s: %v", agentID, err)
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
