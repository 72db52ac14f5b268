package oplog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteLog stores the ordered log in a single SQLite table keyed by a BLOB
// primary key. A batch commits as one SQL transaction, so a project file is
// never observed with a partial batch.
type SQLiteLog struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// OpenSQLite opens or creates a SQLite-backed log at path.
func OpenSQLite(path string) (*SQLiteLog, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite log path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS oplog (
		k BLOB PRIMARY KEY,
		v BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create oplog table: %w", err)
	}
	return &SQLiteLog{db: db, path: path}, nil
}

type sqliteBatch struct {
	log    *SQLiteLog
	writes []struct {
		key   []byte
		value []byte
	}
}

// Begin starts a new write batch.
func (l *SQLiteLog) Begin() Batch { return &sqliteBatch{log: l} }

func (b *sqliteBatch) Put(key, value []byte) {
	b.writes = append(b.writes, struct {
		key   []byte
		value []byte
	}{append([]byte(nil), key...), append([]byte(nil), value...)})
}

func (b *sqliteBatch) Commit() (retErr error) {
	b.log.mu.Lock()
	defer b.log.mu.Unlock()
	tx, err := b.log.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, w := range b.writes {
		if _, err := tx.Exec(`INSERT INTO oplog(k,v) VALUES(?,?) ON CONFLICT(k) DO UPDATE SET v=excluded.v`, w.key, w.value); err != nil {
			retErr = fmt.Errorf("stage record: %w", err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	b.writes = nil
	return nil
}

// Iterate visits records in ascending key order.
func (l *SQLiteLog) Iterate(fn func(key, value []byte) error) error {
	rows, err := l.db.Query(`SELECT k, v FROM oplog ORDER BY k`)
	if err != nil {
		return fmt.Errorf("select oplog: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Path returns the configured database path.
func (l *SQLiteLog) Path() string { return l.path }

// Close releases the database handle.
func (l *SQLiteLog) Close() error { return l.db.Close() }
