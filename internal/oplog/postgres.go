package oplog

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const postgresDriver = "pgx"

// PostgresLog stores project logs in a shared Postgres table, one namespace
// per project file. Batches commit as SQL transactions.
type PostgresLog struct {
	db        *sql.DB
	mu        sync.Mutex
	namespace string
}

// OpenPostgres opens the log identified by namespace on the server at dsn.
func OpenPostgres(dsn, namespace string) (*PostgresLog, error) {
	if namespace == "" {
		return nil, fmt.Errorf("postgres log namespace required")
	}
	db, err := sql.Open(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS reelcore_oplog (
		project TEXT NOT NULL,
		k BYTEA NOT NULL,
		v BYTEA NOT NULL,
		PRIMARY KEY (project, k)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create oplog table: %w", err)
	}
	return &PostgresLog{db: db, namespace: namespace}, nil
}

type postgresBatch struct {
	log    *PostgresLog
	writes []struct {
		key   []byte
		value []byte
	}
}

// Begin starts a new write batch.
func (l *PostgresLog) Begin() Batch { return &postgresBatch{log: l} }

func (b *postgresBatch) Put(key, value []byte) {
	b.writes = append(b.writes, struct {
		key   []byte
		value []byte
	}{append([]byte(nil), key...), append([]byte(nil), value...)})
}

func (b *postgresBatch) Commit() (retErr error) {
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
		if _, err := tx.Exec(`INSERT INTO reelcore_oplog(project,k,v) VALUES($1,$2,$3)
			ON CONFLICT (project,k) DO UPDATE SET v=excluded.v`, b.log.namespace, w.key, w.value); err != nil {
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

// Iterate visits the namespace's records in ascending key order.
func (l *PostgresLog) Iterate(fn func(key, value []byte) error) error {
	rows, err := l.db.Query(`SELECT k, v FROM reelcore_oplog WHERE project=$1 ORDER BY k`, l.namespace)
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

// Close releases the database handle.
func (l *PostgresLog) Close() error { return l.db.Close() }
