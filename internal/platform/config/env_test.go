package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"INFERENCE_MOCK_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("INFERENCE_MOCK_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

type listTestConfig struct {
	Ports   []int         `env:"INFERENCE_MOCK_TEST_PORTS" envDefault:"8004,8005"`
	Timeout time.Duration `env:"INFERENCE_MOCK_TEST_TIMEOUT" envDefault:"2s"`
}

func TestParseEnvListsAndDurations(t *testing.T) {
	t.Setenv("INFERENCE_MOCK_TEST_PORTS", "9001,9002,9003")

	var cfg listTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if len(cfg.Ports) != 3 || cfg.Ports[2] != 9003 {
		t.Fatalf("expected env ports, got %v", cfg.Ports)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.Timeout)
	}
}
