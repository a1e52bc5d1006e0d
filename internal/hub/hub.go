// Package hub wires the event log, the agent registry, and the world
// bridge together. It is the single place where subscriber-originated
// chat and actions are routed both into the world and back into the log,
// so every subscriber sees them.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log"

	"swarmhub.gg/internal/bridge"
	"swarmhub.gg/internal/eventlog"
	"swarmhub.gg/internal/protocol"
	"swarmhub.gg/internal/registry"
)

// ErrAgentNotFound is surfaced to callers as an explicit not-found result,
// never silently substituted.
var ErrAgentNotFound = errors.New("agent not found")

type Config struct {
	// AnchorPlayer is the player near whom new proxy bodies spawn and the
	// default follow target.
	AnchorPlayer string
	// FollowOffset keeps following bodies out of the target's way.
	FollowOffset [2]float64
}

type Hub struct {
	cfg    Config
	events *eventlog.Log
	agents *registry.Registry
	world  *bridge.Bridge
	logger *log.Logger

	metrics Metrics

	// Online-player roster, touched only by the ingest loop.
	roster       map[string]bool
	rosterSeeded bool
}

func New(cfg Config, events *eventlog.Log, agents *registry.Registry, world *bridge.Bridge, logger *log.Logger) *Hub {
	if cfg.FollowOffset == [2]float64{} {
		cfg.FollowOffset = [2]float64{5, 5}
	}
	return &Hub{
		cfg:    cfg,
		events: events,
		agents: agents,
		world:  world,
		logger: logger,
		roster: map[string]bool{},
	}
}

func (h *Hub) Events() *eventlog.Log        { return h.events }
func (h *Hub) Registry() *registry.Registry { return h.agents }
func (h *Hub) Metrics() *Metrics            { return &h.metrics }

// RegisterAgent creates the identity, then tries to embody it near the
// anchor player. Registration never rolls back: a failed spawn leaves the
// agent registered without a body.
func (h *Hub) RegisterAgent(ctx context.Context, name, color string) protocol.RegisterResponse {
	agent := h.agents.Register(name, color)

	if body, ok := h.world.SpawnBody(ctx, h.cfg.AnchorPlayer); ok {
		if h.agents.BindBody(agent.ID, body) {
			agent.BodyID = body
		}
	} else {
		h.logger.Printf("hub: no body for agent %s (%s)", agent.ID, agent.Name)
	}

	h.world.Say(ctx, "System", "green", fmt.Sprintf("Agent '%s' has joined the swarm!", agent.Name))
	h.events.Add(protocol.KindAgentJoin, agent.ID, map[string]any{
		"agent": agent.Info(),
	})

	return protocol.RegisterResponse{
		AgentID: agent.ID,
		Name:    agent.Name,
		Color:   agent.Color,
		BodyID:  agent.BodyID,
	}
}

// SendChat relays a chat line in-world and appends it to the log.
func (h *Hub) SendChat(ctx context.Context, agentID, message string) (protocol.Event, error) {
	agent, ok := h.agents.Get(agentID)
	if !ok {
		return protocol.Event{}, ErrAgentNotFound
	}
	h.world.Say(ctx, agent.Name, agent.Color, message)
	ev := h.events.Add(protocol.KindChat, agent.ID, map[string]any{
		"agent_name": agent.Name,
		"message":    message,
	})
	return ev, nil
}

// ListEvents answers a cursor poll. Server keeps no per-subscriber state;
// the cursor travels in the request.
func (h *Hub) ListEvents(cursor string, limit int) protocol.EventsResponse {
	events := h.events.Since(cursor, limit)
	resp := protocol.EventsResponse{Events: events}
	if len(events) > 0 {
		resp.LastID = events[len(events)-1].ID
	}
	return resp
}

// AgentInfo refreshes position from the world for embodied agents before
// answering.
func (h *Hub) AgentInfo(ctx context.Context, agentID string) (protocol.AgentInfo, error) {
	agent, ok := h.agents.Get(agentID)
	if !ok {
		return protocol.AgentInfo{}, ErrAgentNotFound
	}
	if agent.BodyID != 0 {
		if x, y, ok := h.world.BodyPosition(ctx, agent.BodyID); ok {
			h.agents.UpdatePosition(agent.ID, x, y)
			agent, _ = h.agents.Get(agent.ID)
		}
	}
	return agent.Info(), nil
}

func (h *Hub) Agents() protocol.AgentsResponse {
	all := h.agents.All()
	resp := protocol.AgentsResponse{Agents: make([]protocol.AgentInfo, 0, len(all))}
	for _, a := range all {
		resp.Agents = append(resp.Agents, a.Info())
	}
	return resp
}

// ExecuteRaw passes an operator command straight through to the world.
func (h *Hub) ExecuteRaw(ctx context.Context, command string) string {
	return h.world.Execute(ctx, command)
}

func (h *Hub) PlayersOnline(ctx context.Context) []string {
	players, _ := h.world.OnlinePlayers(ctx)
	return players
}

// Disconnect marks an agent gone and records the departure. Used by push
// sessions on close.
func (h *Hub) Disconnect(agentID string) {
	agent, ok := h.agents.Disconnect(agentID)
	if !ok {
		return
	}
	h.events.Add(protocol.KindAgentLeave, agent.ID, map[string]any{
		"agent_name": agent.Name,
	})
}
