package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Chat     ChatConfig     `yaml:"chat"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Bus      BusConfig      `yaml:"bus"`
}

// FeedConfig holds the game-server event feed settings
type FeedConfig struct {
	URL           string        `yaml:"url"`
	Rooms         []string      `yaml:"rooms"`
	RedialDelay   time.Duration `yaml:"redial_delay"`
	ServerBaseURL string        `yaml:"server_base_url"` // used to build join links in announcements
}

// ChatConfig holds the notification sink settings
type ChatConfig struct {
	APIBase   string `yaml:"api_base"`
	ChannelID string `yaml:"channel_id"`
	Token     string `yaml:"token"`
}

// TrackerConfig holds the lifecycle tracker settings
type TrackerConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxAge        time.Duration `yaml:"max_age"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// BusConfig holds optional NATS event-bus settings.
// When Embedded is true an in-process server is started and URL is ignored.
type BusConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Embedded      bool   `yaml:"embedded"`
	URL           string `yaml:"url"`
	ListenPort    int    `yaml:"listen_port"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Set defaults
	if cfg.Feed.RedialDelay == 0 {
		cfg.Feed.RedialDelay = 10 * time.Second
	}
	if cfg.Tracker.SweepInterval == 0 {
		cfg.Tracker.SweepInterval = 5 * time.Minute
	}
	if cfg.Tracker.MaxAge == 0 {
		cfg.Tracker.MaxAge = 30 * time.Minute
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/tourney/tourney.db"
	}
	if cfg.Bus.ListenPort == 0 {
		cfg.Bus.ListenPort = 4222
	}
	if cfg.Bus.SubjectPrefix == "" {
		cfg.Bus.SubjectPrefix = "tourney"
	}

	// Auth defaults
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}

	return &cfg, nil
}
