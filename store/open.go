package store

import (
	"fmt"
	"log/slog"

	"github.com/rustyeddy/tradegate/config"
	"github.com/rustyeddy/tradegate/risk"
)

// Open builds the risk.Store described by cfg. The caller owns the
// returned store and must Close it.
func Open(cfg config.StoreConfig, log *slog.Logger) (risk.Store, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Type {
	case "", "memory":
		return risk.NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %q: %w", cfg.DBPath, err)
		}
		log.Info("opened risk store", "backend", "sqlite", "path", cfg.DBPath)
		return s, nil
	case "postgres":
		// dsn may carry a password; never log or wrap it.
		return OpenPostgres(cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
