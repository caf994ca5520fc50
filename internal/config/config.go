package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// CoordinatorConfig configures the coordinator binary. Values come from an
// optional YAML file overridden by environment variables.
type CoordinatorConfig struct {
	Env  string     `yaml:"env" env:"HUDDLE_ENV" env-default:"local"`
	HTTP HTTPConfig `yaml:"http"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"HUDDLE_ADDR" env-default:":8080"`

	// AllowedOrigin restricts websocket upgrades to one browser origin.
	// Empty accepts any origin; CLI clients send none.
	AllowedOrigin string `yaml:"allowed_origin" env:"HUDDLE_ORIGIN" env-default:""`
}

// LoadCoordinator reads the coordinator config. With an empty path, or a
// path that does not exist, only environment variables and defaults apply.
func LoadCoordinator(path string) (*CoordinatorConfig, error) {
	var cfg CoordinatorConfig

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return &cfg, nil
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return &cfg, nil
}

// Client defaults (production).
const (
	DefaultServerURL = "wss://huddle.qzz.io"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
)

// ClientConfig holds the participant CLI configuration.
type ClientConfig struct {
	// ServerURL is the coordinator base URL; the mesh and pairwise
	// endpoints hang off it.
	ServerURL string

	// ICE servers for direct connections.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// DisplayName travels with join and chat messages.
	DisplayName string
}

// Options carries CLI flag overrides into LoadClient.
type Options struct {
	ServerURL   string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	DisplayName string
}

// LoadClient resolves the client configuration with the priority
// flag > environment variable > default.
func LoadClient(opts Options) (*ClientConfig, error) {
	pick := func(flag, env, def string) string {
		if flag != "" {
			return flag
		}
		if v := os.Getenv(env); v != "" {
			return v
		}
		return def
	}

	name := pick(opts.DisplayName, "HUDDLE_NAME", "")
	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "anonymous"
		}
		name = host
	}

	return &ClientConfig{
		ServerURL:   pick(opts.ServerURL, "HUDDLE_SERVER", DefaultServerURL),
		STUNServer:  pick(opts.STUNServer, "HUDDLE_STUN", DefaultSTUN),
		TURNServer:  pick(opts.TURNServer, "HUDDLE_TURN", ""),
		TURNUser:    pick(opts.TURNUser, "HUDDLE_TURN_USER", ""),
		TURNPass:    pick(opts.TURNPass, "HUDDLE_TURN_PASS", ""),
		DisplayName: name,
	}, nil
}

// MeshURL returns the websocket URL of the mesh signaling endpoint.
func (c *ClientConfig) MeshURL() string {
	return c.ServerURL + "/ws"
}

// PairURL returns the websocket URL of the pairwise signaling endpoint.
func (c *ClientConfig) PairURL() string {
	return c.ServerURL + "/pair"
}

// STUNServers returns the configured STUN server URLs.
func (c *ClientConfig) STUNServers() []string {
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured.
func (c *ClientConfig) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}
