// Package config provides YAML (or TOML) configuration loading for Planyard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Planyard configuration, loaded from planyard.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Digest   DigestConfig   `yaml:"digest" toml:"digest"`
	GitHub   GitHubConfig   `yaml:"github" toml:"github"`
}

// DatabaseConfig selects and addresses the task store.
type DatabaseConfig struct {
	Driver           string `yaml:"driver" toml:"driver"` // sqlite or mysql
	Path             string `yaml:"path" toml:"path"`     // sqlite only
	Host             string `yaml:"host" toml:"host"`
	Port             int    `yaml:"port" toml:"port"`
	Name             string `yaml:"name" toml:"name"`
	User             string `yaml:"user" toml:"user"`
	PasswordEnv      string `yaml:"password_env" toml:"password_env"`
	StatementTimeout string `yaml:"statement_timeout" toml:"statement_timeout"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text, json, logfmt
}

// DigestConfig schedules the overdue/due-soon digest and names its channels.
type DigestConfig struct {
	Schedule         string `yaml:"schedule" toml:"schedule"`
	DueWithinDays    int    `yaml:"due_within_days" toml:"due_within_days"`
	SlackWebhookURL  string `yaml:"slack_webhook_url" toml:"slack_webhook_url"`
	DiscordToken     string `yaml:"discord_token" toml:"discord_token"`
	DiscordChannelID string `yaml:"discord_channel_id" toml:"discord_channel_id"`
}

// GitHubConfig points the ticket linker at a repository.
type GitHubConfig struct {
	Owner    string `yaml:"owner" toml:"owner"`
	Repo     string `yaml:"repo" toml:"repo"`
	TokenEnv string `yaml:"token_env" toml:"token_env"`
}

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DefaultStatementTimeout bounds every store call made on behalf of a request.
const DefaultStatementTimeout = 5 * time.Second

// Load reads a config file from path and returns a validated Config. Files
// ending in .toml are parsed as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return finish(&cfg)
}

// ParseTOML unmarshals TOML bytes into a validated Config.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse toml: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied,
// backed by a local sqlite file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "planyard.db"
	}
	if c.Database.Driver == DriverMySQL {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "planyard"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Database.StatementTimeout == "" {
		c.Database.StatementTimeout = DefaultStatementTimeout.String()
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 8 * * 1-5"
	}
	if c.Digest.DueWithinDays == 0 {
		c.Digest.DueWithinDays = 7
	}
	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if d, err := time.ParseDuration(c.Database.StatementTimeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Sprintf("database.statement_timeout %q must be a positive duration", c.Database.StatementTimeout))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not supported", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}
	if c.Digest.DueWithinDays < 1 || c.Digest.DueWithinDays > 60 {
		errs = append(errs, "digest.due_within_days must be between 1 and 60")
	}
	if (c.Digest.DiscordToken == "") != (c.Digest.DiscordChannelID == "") {
		errs = append(errs, "digest.discord_token and digest.discord_channel_id must be set together")
	}
	if (c.GitHub.Owner == "") != (c.GitHub.Repo == "") {
		errs = append(errs, "github.owner and github.repo must be set together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Timeout returns the parsed statement timeout.
func (d DatabaseConfig) Timeout() time.Duration {
	t, err := time.ParseDuration(d.StatementTimeout)
	if err != nil || t <= 0 {
		return DefaultStatementTimeout
	}
	return t
}

// Password reads the database password from the configured environment variable.
func (d DatabaseConfig) Password() string {
	if d.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(d.PasswordEnv)
}

// Token reads the GitHub token from the configured environment variable.
func (g GitHubConfig) Token() string {
	return os.Getenv(g.TokenEnv)
}

// Enabled reports whether a target repository is configured.
func (g GitHubConfig) Enabled() bool {
	return g.Owner != "" && g.Repo != ""
}
