package managers

import (
	"context"
	"fmt"

	"github.com/chrissnell/gwrecharge/internal/storage"
	"github.com/chrissnell/gwrecharge/internal/storage/postgres"
	"github.com/chrissnell/gwrecharge/internal/storage/sqlite"
	"github.com/chrissnell/gwrecharge/internal/types"
	"go.uber.org/zap"
)

// NewRunStore opens the archive selected by the storage configuration. The
// "none" backend returns a nil store: finished runs then live in memory only.
func NewRunStore(ctx context.Context, c types.StorageConfig, logger *zap.SugaredLogger) (storage.RunStore, error) {
	switch c.Backend {
	case types.BackendSQLite:
		s, err := sqlite.New(ctx, c.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("could not add SQLite storage backend: %v", err)
		}
		return s, nil
	case types.BackendPostgres:
		s, err := postgres.New(ctx, c.ConnectionString, logger)
		if err != nil {
			return nil, fmt.Errorf("could not add PostgreSQL storage backend: %v", err)
		}
		return s, nil
	case types.BackendNone, "":
		logger.Info("no storage backend configured; runs are kept in memory only")
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
}
