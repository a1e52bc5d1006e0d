package hub

import (
	"context"

	"swarmhub.gg/internal/protocol"
)

// DispatchAction maps an action kind onto the bridge operation and appends
// the attempt to the log as an agent_action event, successful or not.
// Unknown kinds are acknowledged with an explicit unknown_action status
// rather than an error.
func (h *Hub) DispatchAction(ctx context.Context, agentID, action string, params map[string]any) (protocol.ActionResult, error) {
	agent, ok := h.agents.Get(agentID)
	if !ok {
		return nil, ErrAgentNotFound
	}

	result := protocol.ActionResult{"status": protocol.StatusOK, "action": action}

	kind, known := protocol.ParseActionKind(action)
	if !known {
		result["status"] = protocol.StatusUnknownAction
	} else {
		switch kind {
		case protocol.ActionMove:
			if agent.BodyID == 0 {
				result["status"] = "no_body"
				break
			}
			x := paramFloat(params, "x", 0)
			y := paramFloat(params, "y", 0)
			h.world.MoveBody(ctx, agent.BodyID, x, y)
			result["destination"] = [2]float64{x, y}

		case protocol.ActionFollow:
			if agent.BodyID == 0 {
				result["status"] = "no_body"
				break
			}
			player := paramString(params, "player", h.cfg.AnchorPlayer)
			h.world.Follow(ctx, agent.BodyID, player, h.cfg.FollowOffset[0], h.cfg.FollowOffset[1])
			result["following"] = player

		case protocol.ActionSay:
			h.world.Say(ctx, agent.Name, agent.Color, paramString(params, "message", ""))

		case protocol.ActionRaw:
			raw := h.world.Execute(ctx, paramString(params, "command", ""))
			result["result"] = raw
		}
	}

	h.metrics.ActionsDispatched.Add(1)
	h.events.Add(protocol.KindAgentAction, agent.ID, map[string]any{
		"agent_name": agent.Name,
		"action":     action,
		"params":     params,
		"result":     result,
	})
	return result, nil
}

func paramFloat(params map[string]any, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return def
}

func paramString(params map[string]any, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}
