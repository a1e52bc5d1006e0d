package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swarmhub.gg/internal/protocol"
	"swarmhub.gg/internal/registry"
)

// RunIngest polls the world on a fixed interval: new chat, agent position
// refresh, player roster diff. Every step swallows its own failures; a
// transient bridge error never stops the loop.
func (h *Hub) RunIngest(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.ingestOnce(ctx)
		}
	}
}

func (h *Hub) ingestOnce(ctx context.Context) {
	h.metrics.IngestCycles.Add(1)
	h.ingestChat(ctx)
	h.refreshPositions(ctx)
	h.diffRoster(ctx)
}

func (h *Hub) ingestChat(ctx context.Context) {
	lines := h.world.PollChat(ctx)
	if len(lines) == 0 {
		return
	}
	agents := h.agents.All()
	for _, line := range lines {
		// Agent chat already rendered in-world carries the [Name] tag;
		// re-ingesting it would duplicate every agent message as a
		// foreign player chat. Known fragility: any external chat that
		// happens to contain an agent's tag is dropped too. Kept as-is
		// for compatibility.
		if isAgentEcho(line.Message, agents) {
			h.metrics.EchoSuppressed.Add(1)
			continue
		}
		h.metrics.ChatIngested.Add(1)
		h.events.Add(protocol.KindChat, line.Player, map[string]any{
			"player":  line.Player,
			"message": line.Message,
		})
	}
}

func isAgentEcho(message string, agents []registry.Agent) bool {
	for _, a := range agents {
		if strings.Contains(message, fmt.Sprintf("[%s]", a.Name)) {
			return true
		}
	}
	return false
}

func (h *Hub) refreshPositions(ctx context.Context) {
	for _, a := range h.agents.ConnectedAgents() {
		if a.BodyID == 0 {
			continue
		}
		if x, y, ok := h.world.BodyPosition(ctx, a.BodyID); ok {
			h.agents.UpdatePosition(a.ID, x, y)
		}
	}
}

// diffRoster emits player_join/player_leave by comparing consecutive
// online-player polls. The first successful poll seeds the roster silently
// so a hub restart does not announce everyone already online.
func (h *Hub) diffRoster(ctx context.Context) {
	players, ok := h.world.OnlinePlayers(ctx)
	if !ok {
		return
	}
	current := make(map[string]bool, len(players))
	for _, p := range players {
		current[p] = true
	}
	if !h.rosterSeeded {
		h.roster = current
		h.rosterSeeded = true
		return
	}
	for _, p := range players {
		if !h.roster[p] {
			h.events.Add(protocol.KindPlayerJoin, p, map[string]any{"player": p})
		}
	}
	for p := range h.roster {
		if !current[p] {
			h.events.Add(protocol.KindPlayerLeave, p, map[string]any{"player": p})
		}
	}
	h.roster = current
}
