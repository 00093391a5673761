// Package postgres keeps the scene in a Postgres table with one JSONB row per
// actor or token. Transactions run against the embedded memory store; only
// the rows a commit changed are written back.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"squadcore/internal/infra/persistence/memory"
	"squadcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/squadcore?sslmode=disable"
)

const (
	createTable = `CREATE TABLE IF NOT EXISTS scene_records (
	bucket  TEXT  NOT NULL,
	id      TEXT  NOT NULL,
	payload JSONB NOT NULL,
	PRIMARY KEY (bucket, id)
)`
	selectRecords = `SELECT bucket, id, payload FROM scene_records`
	upsertRecord  = `INSERT INTO scene_records(bucket, id, payload) VALUES($1, $2, $3)
ON CONFLICT (bucket, id) DO UPDATE SET payload = EXCLUDED.payload`
	deleteRecord = `DELETE FROM scene_records WHERE bucket = $1 AND id = $2`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a memory.Store whose commits are mirrored into Postgres.
type Store struct {
	*memory.Store
	db *sql.DB

	mu      sync.Mutex
	written memory.Records
}

// NewStore connects to dsn (defaultDSN when empty), creates the records
// table if needed and loads the scene it holds.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s, err := attach(ctx, db, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func attach(ctx context.Context, db *sql.DB, engine *domain.RulesEngine) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("create scene_records: %w", err)
	}
	records, err := readRecords(ctx, db)
	if err != nil {
		return nil, err
	}
	snapshot, err := memory.DecodeRecords(records)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, written: records}, nil
}

func readRecords(ctx context.Context, db *sql.DB) (memory.Records, error) {
	rows, err := db.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, fmt.Errorf("select scene_records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	records := make(memory.Records)
	for rows.Next() {
		var key memory.RecordKey
		var payload []byte
		if err := rows.Scan(&key.Bucket, &key.ID, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records[key] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scene_records: %w", err)
	}
	return records, nil
}

// RunInTransaction commits fn in memory, then writes the changed rows in one
// Postgres transaction. The write is not cancelled with ctx.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.flush(context.WithoutCancel(ctx))
}

func (s *Store) flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := memory.EncodeRecords(s.ExportState())
	if err != nil {
		return err
	}
	upserts, deletes := s.written.Diff(next)
	if len(upserts)+len(deletes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := writeDiff(ctx, tx, next, upserts, deletes); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.written = next
	return nil
}

func writeDiff(ctx context.Context, tx *sql.Tx, next memory.Records, upserts, deletes []memory.RecordKey) error {
	for _, key := range upserts {
		if _, err := tx.ExecContext(ctx, upsertRecord, key.Bucket, key.ID, next[key]); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", key.Bucket, key.ID, err)
		}
	}
	for _, key := range deletes {
		if _, err := tx.ExecContext(ctx, deleteRecord, key.Bucket, key.ID); err != nil {
			return fmt.Errorf("delete %s/%s: %w", key.Bucket, key.ID, err)
		}
	}
	return nil
}

// DB exposes the connection pool to tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the function used to open connections and returns a
// restore func. Tests use it to inject a stub driver.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
