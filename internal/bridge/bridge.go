// Package bridge encodes hub actions into world console commands and
// decodes the text replies. The world is only reachable through a lossy
// command/response channel, so every failure here degrades to an
// error-shaped text value instead of a fault.
package bridge

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
)

// ChatLine is one buffered in-world chat entry.
type ChatLine struct {
	Player  string `json:"player"`
	Message string `json:"message"`
	Tick    int64  `json:"tick"`
}

type Bridge struct {
	ch  CommandChannel
	log *log.Logger

	// High-water-mark of ingested chat ticks. pollMu serializes PollChat
	// callers so the mark only ever advances.
	pollMu       sync.Mutex
	lastChatTick int64
}

func New(ch CommandChannel, logger *log.Logger) *Bridge {
	return &Bridge{ch: ch, log: logger}
}

// Execute runs a raw console command. Transport failures come back as an
// "Error: ..." result so polling loops and action dispatch always get a
// usable value.
func (b *Bridge) Execute(ctx context.Context, command string) string {
	result, err := b.ch.Execute(ctx, command)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// Say prints a chat line in-world under the agent's name tag. Best-effort:
// failures are logged, never propagated.
func (b *Bridge) Say(ctx context.Context, name, color, message string) {
	message = strings.ReplaceAll(message, `"`, `\"`)
	cmd := fmt.Sprintf(`/sc game.print("[color=%s][%s][/color] %s")`, color, name, message)
	if result := b.Execute(ctx, cmd); strings.HasPrefix(result, "Error:") {
		b.log.Printf("bridge: say failed: %s", result)
	}
}

// SpawnBody creates a proxy body near the anchor player and returns its
// unit number. Embodiment is best-effort; any parse failure returns ok=false.
func (b *Bridge) SpawnBody(ctx context.Context, anchor string) (int64, bool) {
	cmd := fmt.Sprintf(`/sc
local p = game.players["%s"]
if p then
    local offset_x = math.random(-10, 10)
    local offset_y = math.random(-10, 10)
    local pos = {p.position.x + offset_x, p.position.y + offset_y}
    local spider = p.surface.create_entity{
        name="spidertron",
        position=pos,
        force="player"
    }
    if spider then
        local grid = spider.grid
        if grid then
            grid.put{name="fusion-reactor-equipment"}
            grid.put{name="personal-roboport-mk2-equipment"}
        end
        spider.insert{name="construction-robot", count=20}
        rcon.print(spider.unit_number)
    end
end
`, anchor)
	result := b.Execute(ctx, cmd)
	id, err := strconv.ParseInt(strings.TrimSpace(result), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// MoveBody sets the body's autopilot destination. Fire-and-forget.
func (b *Bridge) MoveBody(ctx context.Context, body int64, x, y float64) {
	cmd := fmt.Sprintf(`/sc
for _, spider in pairs(game.surfaces[1].find_entities_filtered{name="spidertron"}) do
    if spider.unit_number == %d then
        spider.autopilot_destination = {%g, %g}
        break
    end
end
`, body, x, y)
	b.Execute(ctx, cmd)
}

// Follow steers the body towards a player with a fixed offset.
// Fire-and-forget.
func (b *Bridge) Follow(ctx context.Context, body int64, player string, dx, dy float64) {
	cmd := fmt.Sprintf(`/sc
local p = game.players["%s"]
if p then
    for _, spider in pairs(game.surfaces[1].find_entities_filtered{name="spidertron"}) do
        if spider.unit_number == %d then
            local target = {p.position.x + %g, p.position.y + %g}
            spider.autopilot_destination = target
            break
        end
    end
end
`, player, body, dx, dy)
	b.Execute(ctx, cmd)
}

// BodyPosition reads the body's current position.
func (b *Bridge) BodyPosition(ctx context.Context, body int64) (x, y float64, ok bool) {
	cmd := fmt.Sprintf(`/sc
for _, spider in pairs(game.surfaces[1].find_entities_filtered{name="spidertron"}) do
    if spider.unit_number == %d then
        rcon.print(spider.position.x .. "," .. spider.position.y)
        return
    end
end
`, body)
	result := strings.TrimSpace(b.Execute(ctx, cmd))
	parts := strings.SplitN(result, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return 0, 0, false
	}
	return x, y, true
}

// PollChat fetches buffered chat entries with tick greater than the
// high-water-mark and advances the mark to the highest tick observed.
// Malformed lines are dropped, not fatal to the batch. Callers serialize on
// the bridge's poll lock; the mark never moves backwards.
func (b *Bridge) PollChat(ctx context.Context) []ChatLine {
	b.pollMu.Lock()
	defer b.pollMu.Unlock()

	cmd := fmt.Sprintf(`/sc
if storage and storage.copilot_messages then
    local msgs = {}
    for _, m in ipairs(storage.copilot_messages) do
        if m.tick > %d then
            table.insert(msgs, m.tick .. "|" .. m.player .. "|" .. m.message)
        end
    end
    rcon.print(table.concat(msgs, "\n"))
end
`, b.lastChatTick)
	result := b.Execute(ctx, cmd)
	if strings.HasPrefix(result, "Error:") {
		b.log.Printf("bridge: chat poll failed: %s", result)
		return nil
	}

	var lines []ChatLine
	for _, line := range strings.Split(strings.TrimSpace(result), "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		// Split on the first two delimiters only; the message may
		// contain more pipes and must be captured whole.
		parts := strings.SplitN(line, "|", 3)
		if len(parts) < 3 {
			continue
		}
		tick, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		if tick > b.lastChatTick {
			b.lastChatTick = tick
		}
		lines = append(lines, ChatLine{Player: parts[1], Message: parts[2], Tick: tick})
	}
	return lines
}

// OnlinePlayers lists the names of players currently online. ok is false
// when the channel failed; an empty roster with ok=true is a valid answer.
func (b *Bridge) OnlinePlayers(ctx context.Context) ([]string, bool) {
	result := b.Execute(ctx, "/players online")
	if strings.HasPrefix(result, "Error:") {
		return nil, false
	}
	var players []string
	for _, line := range strings.Split(result, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(line, "  ") && strings.Contains(trimmed, "(online)") {
			fields := strings.Fields(trimmed)
			if len(fields) > 0 {
				players = append(players, fields[0])
			}
		}
	}
	return players, true
}

// InstallChatHook registers the in-world chat capture handler that feeds
// PollChat. Idempotent; safe to run at every startup.
func (b *Bridge) InstallChatHook(ctx context.Context) {
	cmd := `/sc
if not storage then storage = {} end
storage.copilot_messages = storage.copilot_messages or {}
storage.copilot_msg_id = storage.copilot_msg_id or 0

script.on_event(defines.events.on_console_chat, function(event)
    local player = game.get_player(event.player_index)
    if player then
        storage.copilot_msg_id = storage.copilot_msg_id + 1
        table.insert(storage.copilot_messages, {
            id = storage.copilot_msg_id,
            player = player.name,
            message = event.message,
            tick = event.tick
        })
        while #storage.copilot_messages > 20 do
            table.remove(storage.copilot_messages, 1)
        end
    end
end)
`
	if result := b.Execute(ctx, cmd); strings.HasPrefix(result, "Error:") {
		b.log.Printf("bridge: install chat hook failed: %s", result)
	}
}
