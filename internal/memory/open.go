package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nugget/savant/internal/config"
)

// Open returns the turn store selected by cfg.
func Open(ctx context.Context, cfg config.MemoryConfig) (Store, error) {
	switch cfg.Driver {
	case DriverCgo, DriverPure:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create memory directory: %w", err)
			}
		}
		return NewSQLiteStore(cfg.Driver, cfg.Path)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported memory driver %q", cfg.Driver)
	}
}
