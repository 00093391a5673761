package core

import (
	"context"
	"fmt"
	"io"
	"strings"

	"squadcore/internal/config"
	"squadcore/internal/infra/persistence/bolt"
	"squadcore/internal/infra/persistence/memory"
	"squadcore/internal/infra/persistence/postgres"
	"squadcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBolt     StorageDriver = "bolt"     // embedded bbolt file
)

// OpenPersistentStore selects a backend from the configuration. The returned
// closer releases the backend and is never nil.
func OpenPersistentStore(ctx context.Context, cfg config.Config, engine *RulesEngine) (PersistentStore, io.Closer, error) {
	switch StorageDriver(strings.ToLower(strings.TrimSpace(cfg.StorageDriver))) {
	case StorageMemory:
		return memory.NewStore(engine), nopCloser{}, nil
	case StorageSQLite, "":
		s, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case StorageBolt:
		s, err := bolt.Open(cfg.BoltPath, engine)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
