package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CommandChannel sends one opaque text command to the external world and
// returns its opaque text result. It never interprets content.
type CommandChannel interface {
	Execute(ctx context.Context, command string) (string, error)
}

// HTTPChannel talks to the RCON backend over authenticated HTTP with a
// short fixed timeout.
type HTTPChannel struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPChannel(baseURL, apiKey string, timeout time.Duration) *HTTPChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChannel{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPChannel) Execute(ctx context.Context, command string) (string, error) {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute_command", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend status %d", resp.StatusCode)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Result, nil
}
