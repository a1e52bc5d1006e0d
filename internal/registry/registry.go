// Package registry tracks agent identities and their proxy bodies.
//
// Agents are never deleted; a stale agent stays queryable and is only
// marked disconnected.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"swarmhub.gg/internal/protocol"
)

// Round-robin palette for agents that register without a color.
var palette = []string{"cyan", "yellow", "green", "red", "blue", "orange", "pink", "purple"}

type Agent struct {
	ID    string
	Name  string
	Color string

	// BodyID is the world handle of the agent's proxy body; 0 means the
	// agent is registered but not embodied.
	BodyID int64

	X, Y   float64
	HasPos bool

	Connected bool
	LastSeen  time.Time
}

// Info converts to the wire shape.
func (a Agent) Info() protocol.AgentInfo {
	info := protocol.AgentInfo{
		ID:        a.ID,
		Name:      a.Name,
		Color:     a.Color,
		BodyID:    a.BodyID,
		Connected: a.Connected,
		LastSeen:  float64(a.LastSeen.UnixNano()) / 1e9,
	}
	if a.HasPos {
		info.Position = &[2]float64{a.X, a.Y}
	}
	return info
}

type Registry struct {
	mu       sync.Mutex
	agents   map[string]*Agent
	order    []string // registration order, for stable listings
	colorIdx int
}

func New() *Registry {
	return &Registry{agents: map[string]*Agent{}}
}

// Register never fails. An empty color takes the next palette entry.
func (r *Registry) Register(name, color string) Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(color) == "" {
		color = palette[r.colorIdx%len(palette)]
		r.colorIdx++
	}
	a := &Agent{
		ID:        "agent_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Name:      name,
		Color:     color,
		Connected: true,
		LastSeen:  time.Now(),
	}
	r.agents[a.ID] = a
	r.order = append(r.order, a.ID)
	return *a
}

func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// All returns every agent, connected or not, in registration order.
func (r *Registry) All() []Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.agents[id])
	}
	return out
}

// BindBody attaches a world body handle to an agent. It is idempotent for
// the holding agent and a no-op for unknown agents. A handle already held
// by a different, still-connected agent is not rebound.
func (r *Registry) BindBody(id string, body int64) bool {
	if body == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	if a.BodyID == body {
		return true
	}
	for _, other := range r.agents {
		if other.ID != id && other.BodyID == body && other.Connected {
			return false
		}
	}
	a.BodyID = body
	return true
}

// UpdatePosition is a no-op for unknown agents; otherwise it sets the
// position and refreshes last_seen.
func (r *Registry) UpdatePosition(id string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	a.X, a.Y = x, y
	a.HasPos = true
	a.LastSeen = time.Now()
}

// Connect marks an agent connected again (push session reattach).
func (r *Registry) Connect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[id]; ok {
		a.Connected = true
		a.LastSeen = time.Now()
	}
}

// Disconnect marks the agent disconnected but keeps the record.
func (r *Registry) Disconnect(id string) (Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, false
	}
	a.Connected = false
	return *a, true
}

func (r *Registry) ConnectedAgents() []Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		if a := r.agents[id]; a.Connected {
			out = append(out, *a)
		}
	}
	return out
}
