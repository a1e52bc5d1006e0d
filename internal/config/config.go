package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen string `yaml:"listen"`

	// RCON backend the command channel talks to.
	BackendURL    string `yaml:"backend_url"`
	BackendAPIKey string `yaml:"backend_api_key"`

	// Shared secret agents present on every hub endpoint.
	APIKey string `yaml:"api_key"`

	PollIntervalMS   int `yaml:"poll_interval_ms"`
	MaxEvents        int `yaml:"max_events"`
	CommandTimeoutMS int `yaml:"command_timeout_ms"`

	AnchorPlayer string `yaml:"anchor_player"`
}

func Defaults() Config {
	return Config{
		Listen:           ":8888",
		BackendURL:       "http://localhost:8000",
		BackendAPIKey:    "factorio-backend-key",
		APIKey:           "swarm-secret-key",
		PollIntervalMS:   500,
		MaxEvents:        1000,
		CommandTimeoutMS: 10000,
		AnchorPlayer:     "terranix",
	}
}

// Load reads the YAML file over the defaults, then applies environment
// overrides. Secrets normally arrive via SWARM_API_KEY / BACKEND_API_KEY
// rather than the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("hub.yaml: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefaults is Load, except a missing file yields the defaults (with
// env overrides) instead of an error.
func LoadOrDefaults(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = Defaults()
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SWARM_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("BACKEND_API_KEY"); v != "" {
		c.BackendAPIKey = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
}
