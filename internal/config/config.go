// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/zulandar/switchboard/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultAssignTimeout bounds how long an assignment waits for an
// administrator already mid-operation.
const DefaultAssignTimeout = 2 * time.Second

// Config is the top-level Switchboard configuration, loaded from switchboard.yaml.
type Config struct {
	Database     DatabaseConfig      `yaml:"database"`
	HTTP         HTTPConfig          `yaml:"http"`
	Chat         ChatConfig          `yaml:"chat"`
	Digest       DigestConfig        `yaml:"digest"`
	Participants []ParticipantConfig `yaml:"participants"`
}

// DatabaseConfig selects the storage backend. Driver is "sqlite" or "mysql".
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	Path     string `yaml:"path" env:"PATH"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Port int `yaml:"port" env:"PORT"`
}

// ChatConfig tunes the assignment engine.
type ChatConfig struct {
	AssignTimeout time.Duration `yaml:"assign_timeout" env:"ASSIGN_TIMEOUT"`
}

// DigestConfig configures the waiting-conversation digest posted to staff.
// An empty Schedule disables the digest.
type DigestConfig struct {
	Schedule       string `yaml:"schedule" env:"SCHEDULE"`
	SlackToken     string `yaml:"slack_token" env:"SLACK_TOKEN"`
	SlackChannel   string `yaml:"slack_channel" env:"SLACK_CHANNEL"`
	DiscordToken   string `yaml:"discord_token" env:"DISCORD_TOKEN"`
	DiscordChannel string `yaml:"discord_channel" env:"DISCORD_CHANNEL"`
}

// ParticipantConfig seeds a known chat user.
type ParticipantConfig struct {
	ID          string      `yaml:"id"`
	DisplayName string      `yaml:"display_name"`
	Role        models.Role `yaml:"role"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. SWITCHBOARD_*
// environment variables override values from the file.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables onto each section.
func (c *Config) applyEnv() error {
	sections := []struct {
		prefix string
		target any
	}{
		{"SWITCHBOARD_DB_", &c.Database},
		{"SWITCHBOARD_HTTP_", &c.HTTP},
		{"SWITCHBOARD_CHAT_", &c.Chat},
		{"SWITCHBOARD_DIGEST_", &c.Digest},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.target, env.Options{Prefix: s.prefix}); err != nil {
			return fmt.Errorf("config: env %s*: %w", s.prefix, err)
		}
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "switchboard.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "switchboard"
		}
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Chat.AssignTimeout == 0 {
		c.Chat.AssignTimeout = DefaultAssignTimeout
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Database.Driver != "sqlite" && c.Database.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Chat.AssignTimeout < 0 {
		errs = append(errs, "chat.assign_timeout must not be negative")
	}
	if c.Digest.SlackToken != "" && c.Digest.SlackChannel == "" {
		errs = append(errs, "digest.slack_channel is required with digest.slack_token")
	}
	if c.Digest.DiscordToken != "" && c.Digest.DiscordChannel == "" {
		errs = append(errs, "digest.discord_channel is required with digest.discord_token")
	}
	seen := make(map[string]bool)
	for i, p := range c.Participants {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("participants[%d].id is required", i))
		} else if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("participants[%d].id %q is duplicated", i, p.ID))
		}
		seen[p.ID] = true
		if p.DisplayName == "" {
			errs = append(errs, fmt.Sprintf("participants[%d].display_name is required", i))
		}
		if !p.Role.Valid() {
			errs = append(errs, fmt.Sprintf("participants[%d].role %q is not a known role", i, p.Role))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
