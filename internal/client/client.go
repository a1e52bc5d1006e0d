// Package client connects a swarm agent to the event hub, either by
// cursor polling or over a push session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"swarmhub.gg/internal/protocol"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	// Filled by Register.
	AgentID string
	Name    string
	BodyID  int64
}

func New(serverURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Register joins the swarm and remembers the assigned identity.
func (c *Client) Register(ctx context.Context, name, color string) (protocol.RegisterResponse, error) {
	var resp protocol.RegisterResponse
	err := c.do(ctx, http.MethodPost, "/agents/register",
		protocol.RegisterRequest{Name: name, Color: color}, &resp)
	if err != nil {
		return resp, err
	}
	c.AgentID = resp.AgentID
	c.Name = resp.Name
	c.BodyID = resp.BodyID
	return resp, nil
}

// Say sends a chat message visible to all players and agents.
func (c *Client) Say(ctx context.Context, message string) (protocol.ChatResponse, error) {
	var resp protocol.ChatResponse
	err := c.do(ctx, http.MethodPost, "/agents/"+c.AgentID+"/chat",
		protocol.ChatRequest{Message: message}, &resp)
	return resp, err
}

func (c *Client) MoveTo(ctx context.Context, x, y float64) (protocol.ActionResult, error) {
	return c.Action(ctx, string(protocol.ActionMove), map[string]any{"x": x, "y": y})
}

func (c *Client) FollowPlayer(ctx context.Context, player string) (protocol.ActionResult, error) {
	return c.Action(ctx, string(protocol.ActionFollow), map[string]any{"player": player})
}

func (c *Client) ExecuteRaw(ctx context.Context, command string) (protocol.ActionResult, error) {
	return c.Action(ctx, string(protocol.ActionRaw), map[string]any{"command": command})
}

func (c *Client) Action(ctx context.Context, action string, params map[string]any) (protocol.ActionResult, error) {
	var resp protocol.ActionResult
	err := c.do(ctx, http.MethodPost, "/agents/"+c.AgentID+"/action",
		protocol.ActionRequest{Action: action, Params: params}, &resp)
	return resp, err
}

// Events polls once. Pass the last_id of the previous call as since to get
// only new events.
func (c *Client) Events(ctx context.Context, since string, limit int) (protocol.EventsResponse, error) {
	path := "/events"
	q := make([]string, 0, 2)
	if since != "" {
		q = append(q, "since="+since)
	}
	if limit > 0 {
		q = append(q, "limit="+strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + strings.Join(q, "&")
	}
	var resp protocol.EventsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Poll delivers events to fn on a fixed interval until ctx is cancelled.
func (c *Client) Poll(ctx context.Context, interval time.Duration, fn func(protocol.Event)) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	cursor := ""
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		resp, err := c.Events(ctx, cursor, 0)
		if err != nil {
			return err
		}
		for _, ev := range resp.Events {
			fn(ev)
		}
		if resp.LastID != "" {
			cursor = resp.LastID
		}
	}
}

// Listen opens a push session and delivers history and new events to fn
// until the connection drops or ctx is cancelled. Lower latency than Poll.
func (c *Client) Listen(ctx context.Context, fn func(protocol.Event)) error {
	url := strings.Replace(strings.Replace(c.baseURL, "https://", "wss://", 1), "http://", "ws://", 1)
	url += "/ws/" + c.AgentID + "?api_key=" + c.apiKey

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeHistory:
			var h protocol.HistoryMsg
			if err := json.Unmarshal(msg, &h); err != nil {
				continue
			}
			for _, ev := range h.Events {
				fn(ev)
			}
		case protocol.TypeEvent:
			var e protocol.EventMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			fn(e.Event)
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e protocol.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Code != "" {
			return fmt.Errorf("%s: %s", e.Code, e.Message)
		}
		return fmt.Errorf("hub status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
