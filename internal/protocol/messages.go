package protocol

// HISTORY (server -> client): snapshot of recent events sent on session open.
type HistoryMsg struct {
	Type   string  `json:"type"`
	Events []Event `json:"events"`
}

// EVENT (server -> client): one new event past the session cursor.
type EventMsg struct {
	Type  string `json:"type"`
	Event Event  `json:"event"`
}

// CHAT (client -> server)
type ChatInMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ACTION (client -> server)
type ActionInMsg struct {
	Type   string         `json:"type"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// REST request/response bodies.

type RegisterRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type RegisterResponse struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	BodyID  int64  `json:"body_id,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

type ActionRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// ActionResult carries the status plus action-specific fields
// (destination, following, raw result).
type ActionResult map[string]any

type EventsResponse struct {
	Events []Event `json:"events"`
	LastID string  `json:"last_id,omitempty"`
}

type AgentInfo struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Color     string      `json:"color"`
	BodyID    int64       `json:"body_id,omitempty"`
	Position  *[2]float64 `json:"position,omitempty"`
	Connected bool        `json:"connected"`
	LastSeen  float64     `json:"last_seen"`
}

type AgentsResponse struct {
	Agents []AgentInfo `json:"agents"`
}

type ExecuteRequest struct {
	Command string `json:"command"`
}

type ExecuteResponse struct {
	Result string `json:"result"`
}

type PlayersResponse struct {
	Players []string `json:"players"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
