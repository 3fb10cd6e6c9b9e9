package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// MCP transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Backend kinds.
const (
	BackendJira   = "jira"
	BackendSQLite = "sqlite"
	BackendVault  = "vault"
)

// Duration is a time.Duration read from strings like "30m" in YAML and TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	MCP     MCPConfig         `yaml:"mcp" toml:"mcp"`
	Backend BackendConfig     `yaml:"backend" toml:"backend"`
	Jira    JiraConfig        `yaml:"jira" toml:"jira"`
	SQLite  SQLiteConfig      `yaml:"sqlite" toml:"sqlite"`
	Vault   VaultConfig       `yaml:"vault" toml:"vault"`
	Tracker TrackerConfig     `yaml:"tracker" toml:"tracker"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate applies JIRA_* environment overrides and validates the configuration.
func (c *Config) Validate() error {
	if err := c.Jira.applyEnv(); err != nil {
		return err
	}
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.MCP.Validate(); err != nil {
		return err
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	switch c.Backend.Kind {
	case BackendJira:
		if err := c.Jira.Validate(); err != nil {
			return err
		}
	case BackendSQLite:
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	case BackendVault:
		if err := c.Vault.Validate(); err != nil {
			return err
		}
		if err := c.SQLite.Validate(); err != nil {
			return fmt.Errorf("vault backend keeps its time log in sqlite: %w", err)
		}
	}
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// MCPConfig selects how the MCP server is exposed.
// "http" mounts it at /mcp on the HTTP server; "stdio" serves it on stdin/stdout
// in addition to the HTTP server.
type MCPConfig struct {
	Transport string `yaml:"transport" toml:"transport"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	if c.Transport == "" {
		c.Transport = TransportHTTP
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Transport, validation.In(TransportHTTP, TransportStdio)),
	)
}

// Stdio reports whether the stdio transport is active.
func (c *MCPConfig) Stdio() bool {
	return c.Transport == TransportStdio
}

// BackendConfig selects the Document Store and Time Log implementation.
type BackendConfig struct {
	Kind string `yaml:"kind" toml:"kind"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(BackendJira, BackendSQLite, BackendVault)),
	)
}

// JiraConfig holds Jira connection settings.
type JiraConfig struct {
	URL                string   `yaml:"url" toml:"url"`
	Email              string   `yaml:"email" toml:"email"`
	APIToken           string   `yaml:"api_token" toml:"api_token"`
	AuthType           string   `yaml:"auth_type" toml:"auth_type"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	RequestTimeout     Duration `yaml:"request_timeout" toml:"request_timeout"`
}

// jiraEnv mirrors the JIRA_* environment variables. Zero values mean unset.
type jiraEnv struct {
	URL            string        `envconfig:"URL"`
	Email          string        `envconfig:"EMAIL"`
	APIToken       string        `envconfig:"API_TOKEN"`
	AuthType       string        `envconfig:"AUTH_TYPE"`
	RateLimit      int           `envconfig:"RATE_LIMIT"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`
}

func (c *JiraConfig) applyEnv() error {
	var env jiraEnv
	if err := envconfig.Process("jira", &env); err != nil {
		return fmt.Errorf("jira env: %w", err)
	}
	if env.URL != "" {
		c.URL = env.URL
	}
	if env.Email != "" {
		c.Email = env.Email
	}
	if env.APIToken != "" {
		c.APIToken = env.APIToken
	}
	if env.AuthType != "" {
		c.AuthType = env.AuthType
	}
	if env.RateLimit > 0 {
		c.RateLimitPerMinute = env.RateLimit
	}
	if env.RequestTimeout > 0 {
		c.RequestTimeout = Duration(env.RequestTimeout)
	}
	return nil
}

// Validate validates the Jira configuration.
func (c *JiraConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.AuthType, validation.In("", "basic", "bearer", "pat", "anonymous", "none")),
		validation.Field(&c.RateLimitPerMinute, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("jira: %w", err)
	}
	if (c.AuthType == "" || c.AuthType == "basic") && (c.Email == "" || c.APIToken == "") {
		return fmt.Errorf("jira: basic auth requires email and api_token")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// VaultConfig holds the Markdown vault directory. Each file is one document,
// keyed by its slash-separated path relative to Path without the .md suffix.
type VaultConfig struct {
	Path    string `yaml:"path" toml:"path"`
	Include string `yaml:"include" toml:"include"`
	Watch   bool   `yaml:"watch" toml:"watch"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// TrackerConfig holds work-session settings.
type TrackerConfig struct {
	CheckpointInterval Duration `yaml:"checkpoint_interval" toml:"checkpoint_interval"`
	Location           string   `yaml:"location" toml:"location"`
}

// Validate validates the tracker configuration.
func (c *TrackerConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.CheckpointInterval, validation.Required, validation.Min(Duration(time.Minute))),
	); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if _, err := c.Loc(); err != nil {
		return fmt.Errorf("tracker: location: %w", err)
	}
	return nil
}

// Loc returns the location used for calendar-day comparisons. Empty means UTC.
func (c *TrackerConfig) Loc() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Location)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		MCP: MCPConfig{
			Transport: TransportHTTP,
		},
		Backend: BackendConfig{
			Kind: BackendSQLite,
		},
		Jira: JiraConfig{
			AuthType:           "basic",
			RateLimitPerMinute: 60,
			RequestTimeout:     Duration(30 * time.Second),
		},
		SQLite: SQLiteConfig{
			Path: "./raido.db",
		},
		Vault: VaultConfig{
			Path:    "./vault",
			Include: "**/*.md",
			Watch:   true,
		},
		Tracker: TrackerConfig{
			CheckpointInterval: Duration(30 * time.Minute),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
