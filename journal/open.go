package journal

import (
	"fmt"

	"github.com/rustyeddy/tradegate/config"
)

// Open builds the Journal described by cfg.
func Open(cfg config.JournalConfig) (Journal, error) {
	switch cfg.Type {
	case "", "none":
		return Discard{}, nil
	case "csv":
		j, err := NewCSV(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("open csv journal %q: %w", cfg.File, err)
		}
		return j, nil
	case "sqlite":
		j, err := NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal %q: %w", cfg.DBPath, err)
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
