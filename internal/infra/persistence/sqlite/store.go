// Package sqlite keeps the scene in an embedded SQLite file, one row per
// actor or token.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"squadcore/internal/infra/persistence/memory"
	"squadcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS scene_records (
	bucket  TEXT NOT NULL,
	id      TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (bucket, id)
)`

// Store runs transactions against the embedded memory store and writes the
// records they changed once they commit.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string

	mu      sync.Mutex
	written memory.Records
}

// NewStore opens (creating when missing) the database at path and loads the
// scene it holds.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "squadcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers; sqlite locks the file anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create scene_records: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, id, payload FROM scene_records`)
	if err != nil {
		return fmt.Errorf("select scene_records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	records := make(memory.Records)
	for rows.Next() {
		var key memory.RecordKey
		var payload []byte
		if err := rows.Scan(&key.Bucket, &key.ID, &payload); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		records[key] = payload
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate scene_records: %w", err)
	}
	snapshot, err := memory.DecodeRecords(records)
	if err != nil {
		return err
	}
	s.ImportState(snapshot)
	s.written = records
	return nil
}

func (s *Store) flush(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := memory.EncodeRecords(s.ExportState())
	if err != nil {
		return err
	}
	upserts, deletes := s.written.Diff(next)
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, key := range upserts {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO scene_records(bucket, id, payload) VALUES(?, ?, ?)
			 ON CONFLICT(bucket, id) DO UPDATE SET payload = excluded.payload`,
			key.Bucket, key.ID, next[key]); err != nil {
			return fmt.Errorf("write %s/%s: %w", key.Bucket, key.ID, err)
		}
	}
	for _, key := range deletes {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM scene_records WHERE bucket = ? AND id = ?`, key.Bucket, key.ID); err != nil {
			return fmt.Errorf("delete %s/%s: %w", key.Bucket, key.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.written = next
	return nil
}

// RunInTransaction commits fn in memory and then writes the changed records.
// The write ignores ctx cancellation so a committed change is not lost
// half way.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.flush(context.WithoutCancel(ctx))
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the database handle to tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
