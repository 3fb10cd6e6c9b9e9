package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/raido/internal/jira"
	"github.com/starford/raido/internal/sqlitestore"
	"github.com/starford/raido/internal/storage"
)

// backend bundles the collaborators selected by BackendConfig.
type backend struct {
	docs  storage.Documents
	log   storage.TimeLog
	vault *storage.FS // non-nil for the vault backend
	close func() error
}

func openBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend.Kind {
	case BackendJira:
		auth, err := jira.NewAuthenticator(cfg.Jira.AuthType, cfg.Jira.Email, cfg.Jira.APIToken)
		if err != nil {
			return nil, fmt.Errorf("jira auth: %w", err)
		}
		client := jira.NewClient(cfg.Jira.URL, auth,
			jira.WithTimeout(time.Duration(cfg.Jira.RequestTimeout)),
			jira.WithRateLimit(cfg.Jira.RateLimitPerMinute),
			jira.WithLogger(logger),
		)
		if me, err := client.Myself(ctx); err != nil {
			logger.Warn("jira: credential check failed", slog.String("error", err.Error()))
		} else {
			logger.Info("jira: connected", slog.String("url", client.BaseURL()), slog.String("user", me.DisplayName))
		}
		return &backend{docs: client, log: client, close: func() error { return nil }}, nil

	case BackendSQLite:
		db, err := sqlitestore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return &backend{docs: db, log: db, close: db.Close}, nil

	case BackendVault:
		if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Vault.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		db, err := sqlitestore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return &backend{docs: store, log: db, vault: store, close: db.Close}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
}
