package protocol

// Kind classifies hub events.
type Kind string

const (
	KindChat        Kind = "chat"         // player or agent chat message
	KindAgentJoin   Kind = "agent_join"   // agent registered with the swarm
	KindAgentLeave  Kind = "agent_leave"  // agent disconnected
	KindPlayerJoin  Kind = "player_join"  // human player joined the world
	KindPlayerLeave Kind = "player_leave" // human player left the world
	KindAgentAction Kind = "agent_action" // agent performed an action
	KindGameEvent   Kind = "game_event"   // world-originated event
	KindSystem      Kind = "system"       // system message
)

// Event is an immutable log entry. Only eventlog.Log creates these;
// nothing mutates them after creation.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"type"`
	Timestamp float64        `json:"timestamp"` // unix seconds
	Source    string         `json:"source"`    // agent id, player name, or "system"
	Payload   map[string]any `json:"data"`
}

// SourceSystem is the source string for hub-originated events.
const SourceSystem = "system"
