package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/resilience"
	"github.com/sells-group/panel-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "panel.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and applies its schema, retrying
// while the database is unreachable.
func openStore(ctx context.Context) (store.Store, error) {
	retry := resilience.FromAttempts(cfg.Store.ConnectAttempts, cfg.Store.ConnectBackoffMs)
	retry.OnRetry = resilience.RetryLogger("store", "open")

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (store.Store, error) {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	})
}
