package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadClient_FlagBeatsEnvBeatsDefault(t *testing.T) {
	t.Setenv("HUDDLE_SERVER", "ws://env.example:9000")
	t.Setenv("HUDDLE_STUN", "stun:env.example:3478")

	cfg, err := LoadClient(Options{ServerURL: "ws://flag.example:9000"})
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}

	if cfg.ServerURL != "ws://flag.example:9000" {
		t.Fatalf("ServerURL = %q, flag should win", cfg.ServerURL)
	}
	if cfg.STUNServer != "stun:env.example:3478" {
		t.Fatalf("STUNServer = %q, env should win over default", cfg.STUNServer)
	}
}

func TestLoadClient_DefaultsApply(t *testing.T) {
	t.Setenv("HUDDLE_SERVER", "")
	t.Setenv("HUDDLE_STUN", "")

	cfg, err := LoadClient(Options{})
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Fatalf("ServerURL = %q, want default", cfg.ServerURL)
	}
	if cfg.STUNServer != DefaultSTUN {
		t.Fatalf("STUNServer = %q, want default", cfg.STUNServer)
	}
	if cfg.DisplayName == "" {
		t.Fatal("DisplayName empty, want hostname fallback")
	}
}

func TestClientConfig_EndpointURLs(t *testing.T) {
	cfg := &ClientConfig{ServerURL: "ws://localhost:8080"}
	if got := cfg.MeshURL(); got != "ws://localhost:8080/ws" {
		t.Fatalf("MeshURL = %q", got)
	}
	if got := cfg.PairURL(); got != "ws://localhost:8080/pair" {
		t.Fatalf("PairURL = %q", got)
	}
}

func TestClientConfig_TURNServersOptional(t *testing.T) {
	cfg := &ClientConfig{}
	if got := cfg.TURNServers(); got != nil {
		t.Fatalf("TURNServers = %v, want nil without config", got)
	}

	cfg.TURNServer = "turn:relay.example"
	got := cfg.TURNServers()
	if len(got) != 2 || got[0] != "turn:relay.example:3478?transport=udp" {
		t.Fatalf("TURNServers = %v", got)
	}
}

func TestLoadCoordinator_ReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.yaml")
	body := "env: prod\nhttp:\n  address: \":9090\"\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadCoordinator(path)
	if err != nil {
		t.Fatalf("LoadCoordinator: %v", err)
	}
	if cfg.Env != "prod" || cfg.HTTP.Address != ":9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadCoordinator_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadCoordinator("")
	if err != nil {
		t.Fatalf("LoadCoordinator: %v", err)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("Address = %q, want :8080", cfg.HTTP.Address)
	}
	if cfg.Env != "local" {
		t.Fatalf("Env = %q, want local", cfg.Env)
	}
}
