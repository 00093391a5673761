// Package testutil provides a database/sql driver that imitates the
// scene_records table closely enough to exercise the postgres store without
// a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var driverSeq atomic.Int64

// StubConn holds committed rows keyed "bucket/id" and the statements it saw.
type StubConn struct {
	mu    sync.Mutex
	Execs []string
	State map[string][]byte

	inTx bool
	ops  []rowOp

	FailPing   bool
	FailExec   bool
	FailCommit bool
}

type rowOp struct {
	key     string
	payload []byte
	del     bool
}

// NewStubDB opens a sql.DB on a freshly registered stub driver.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{State: make(map[string][]byte)}
	name := fmt.Sprintf("scene-stub-%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

// Keys returns the committed row keys in sorted order.
func (c *StubConn) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.State))
	for k := range c.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; the store only uses direct exec and query.
func (c *StubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare unsupported: %q", query)
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inTx = true
	c.ops = nil
	return stubTx{c}, nil
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping failed")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("exec failed")
	}
	stmt := strings.TrimSpace(query)
	var op rowOp
	switch {
	case strings.HasPrefix(stmt, "INSERT INTO scene_records"):
		if len(args) != 3 {
			return nil, fmt.Errorf("insert wants 3 args, got %d", len(args))
		}
		payload, _ := args[2].Value.([]byte)
		op = rowOp{key: rowKey(args), payload: append([]byte(nil), payload...)}
	case strings.HasPrefix(stmt, "DELETE FROM scene_records"):
		if len(args) != 2 {
			return nil, fmt.Errorf("delete wants 2 args, got %d", len(args))
		}
		op = rowOp{key: rowKey(args), del: true}
	default:
		return driver.RowsAffected(0), nil
	}
	if c.inTx {
		c.ops = append(c.ops, op)
	} else {
		c.apply(op)
	}
	return driver.RowsAffected(1), nil
}

func rowKey(args []driver.NamedValue) string {
	bucket, _ := args[0].Value.(string)
	id, _ := args[1].Value.(string)
	return bucket + "/" + id
}

func (c *StubConn) apply(op rowOp) {
	if op.del {
		delete(c.State, op.key)
		return
	}
	c.State[op.key] = op.payload
}

// QueryContext implements driver.QueryerContext for the records select.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.Contains(query, "FROM scene_records") {
		return nil, fmt.Errorf("unsupported query %q", query)
	}
	rows := &stubRows{}
	for key, payload := range c.State {
		bucket, id, _ := strings.Cut(key, "/")
		rows.data = append(rows.data, []driver.Value{bucket, id, append([]byte(nil), payload...)})
	}
	return rows, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := c.ops
	c.inTx, c.ops = false, nil
	if c.FailCommit {
		return errors.New("commit failed")
	}
	for _, op := range ops {
		c.apply(op)
	}
	return nil
}

func (t stubTx) Rollback() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inTx, c.ops = false, nil
	return nil
}

type stubRows struct {
	data [][]driver.Value
	next int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "id", "payload"} }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.next])
	r.next++
	return nil
}
