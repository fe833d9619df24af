// Package config loads the server configuration from YAML with coded
// defaults for every field the file omits.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Riot    RiotConfig    `yaml:"riot"`
	Monitor MonitorConfig `yaml:"monitor"`
	Storage StorageConfig `yaml:"storage"`
	WS      WSConfig      `yaml:"ws"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RiotConfig struct {
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RetryCooldown  time.Duration `yaml:"retry_cooldown"`
	RateLimit      RateLimit     `yaml:"rate_limit"`
}

// RateLimit mirrors the development key allowance: 100 calls per rolling
// two minutes.
type RateLimit struct {
	MaxCalls int           `yaml:"max_calls"`
	Window   time.Duration `yaml:"window"`
}

type MonitorConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	StopTimeout     time.Duration `yaml:"stop_timeout"`
	HealthThreshold int           `yaml:"health_threshold"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type WSConfig struct {
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Riot: RiotConfig{
			RequestTimeout: 10 * time.Second,
			RetryCooldown:  5 * time.Second,
			RateLimit: RateLimit{
				MaxCalls: 100,
				Window:   2 * time.Minute,
			},
		},
		Monitor: MonitorConfig{
			PollInterval:    30 * time.Second,
			StopTimeout:     5 * time.Second,
			HealthThreshold: 3,
		},
		Storage: StorageConfig{
			Path: "riftwatch.db",
		},
		WS: WSConfig{
			BroadcastThrottle: 100 * time.Millisecond,
			SnapshotInterval:  30 * time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault returns the coded defaults when the file does not exist.
// Any other read or parse error is still fatal.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = defaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

// applyEnv lets the credential live outside the config file.
func (c *Config) applyEnv() {
	if key := os.Getenv("RIOT_API_KEY"); key != "" {
		c.Riot.APIKey = key
	}
}

// GenerateToken produces a random hex auth token for ad-hoc deployments
// that did not configure one.
func GenerateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
