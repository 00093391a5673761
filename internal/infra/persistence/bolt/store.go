// Package bolt keeps the scene in a BoltDB file: an actors bucket and a
// tokens bucket, one key per record.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"squadcore/internal/infra/persistence/memory"
	"squadcore/pkg/domain"

	"go.etcd.io/bbolt"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store is a memory.Store whose commits are mirrored into BoltDB.
type Store struct {
	*memory.Store
	db *bbolt.DB

	mu      sync.Mutex
	written memory.Records
}

// Open opens or creates the file at path and loads the scene it holds.
func Open(path string, engine *domain.RulesEngine) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	store := &Store{Store: memory.NewStore(engine), db: db}
	if err := store.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the BoltDB file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTransaction commits fn in memory and then writes the changed keys.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.flush()
}

func (s *Store) load() error {
	records := make(memory.Records)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range memory.Buckets {
			bucket, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
			if err := bucket.ForEach(func(k, v []byte) error {
				records[memory.RecordKey{Bucket: name, ID: string(k)}] = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	snapshot, err := memory.DecodeRecords(records)
	if err != nil {
		return err
	}
	s.ImportState(snapshot)
	s.written = records
	return nil
}

func (s *Store) flush() error {
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
	err = s.db.Update(func(tx *bbolt.Tx) error {
		for _, key := range upserts {
			if err := tx.Bucket([]byte(key.Bucket)).Put([]byte(key.ID), next[key]); err != nil {
				return fmt.Errorf("put %s/%s: %w", key.Bucket, key.ID, err)
			}
		}
		for _, key := range deletes {
			if err := tx.Bucket([]byte(key.Bucket)).Delete([]byte(key.ID)); err != nil {
				return fmt.Errorf("delete %s/%s: %w", key.Bucket, key.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.written = next
	return nil
}
