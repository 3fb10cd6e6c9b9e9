package internal

import "github.com/starford/raido/internal/session"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	clock   session.Clock
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithClock replaces the wall clock used by the tracker.
func WithClock(c session.Clock) Option {
	return func(a *application) {
		a.clock = c
	}
}
