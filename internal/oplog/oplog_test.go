package oplog

import (
	"bytes"
	"path/filepath"
	"testing"
)

func testLogs(t *testing.T) map[string]Log {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "project.reel"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Log{
		"memory": NewMemoryLog(),
		"sqlite": sqlite,
	}
}

func collect(t *testing.T, log Log) (keys []string, values [][]byte) {
	t.Helper()
	err := log.Iterate(func(key, value []byte) error {
		keys = append(keys, string(key))
		values = append(values, append([]byte(nil), value...))
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return keys, values
}

func TestLogPutCommitIterate(t *testing.T) {
	for name, log := range testLogs(t) {
		t.Run(name, func(t *testing.T) {
			batch := log.Begin()
			batch.Put([]byte("b"), []byte("two"))
			batch.Put([]byte("a"), []byte("one"))
			batch.Put([]byte("c"), []byte("three"))
			if err := batch.Commit(); err != nil {
				t.Fatalf("commit: %v", err)
			}
			keys, values := collect(t, log)
			want := []string{"a", "b", "c"}
			if len(keys) != len(want) {
				t.Fatalf("got %d records, want %d", len(keys), len(want))
			}
			for i, k := range want {
				if keys[i] != k {
					t.Fatalf("key %d = %q, want %q", i, keys[i], k)
				}
			}
			if !bytes.Equal(values[0], []byte("one")) {
				t.Fatalf("value for a = %q", values[0])
			}
		})
	}
}

func TestLogUncommittedBatchInvisible(t *testing.T) {
	for name, log := range testLogs(t) {
		t.Run(name, func(t *testing.T) {
			batch := log.Begin()
			batch.Put([]byte("pending"), []byte("x"))
			keys, _ := collect(t, log)
			if len(keys) != 0 {
				t.Fatalf("uncommitted write visible: %v", keys)
			}
			if err := batch.Commit(); err != nil {
				t.Fatalf("commit: %v", err)
			}
			keys, _ = collect(t, log)
			if len(keys) != 1 || keys[0] != "pending" {
				t.Fatalf("committed write missing: %v", keys)
			}
		})
	}
}

func TestLogPutOverwritesKey(t *testing.T) {
	for name, log := range testLogs(t) {
		t.Run(name, func(t *testing.T) {
			b := log.Begin()
			b.Put([]byte("k"), []byte("old"))
			if err := b.Commit(); err != nil {
				t.Fatalf("commit: %v", err)
			}
			b = log.Begin()
			b.Put([]byte("k"), []byte("new"))
			if err := b.Commit(); err != nil {
				t.Fatalf("commit: %v", err)
			}
			keys, values := collect(t, log)
			if len(keys) != 1 || !bytes.Equal(values[0], []byte("new")) {
				t.Fatalf("got %v %q", keys, values)
			}
		})
	}
}

func TestSQLiteLogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.reel")
	log, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	batch := log.Begin()
	batch.Put([]byte("header"), []byte("{}"))
	batch.Put([]byte("cmd/0000000000000001"), []byte{1, 2, 3})
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	keys, _ := collect(t, reopened)
	if len(keys) != 2 || keys[0] != "cmd/0000000000000001" || keys[1] != "header" {
		t.Fatalf("unexpected keys after reopen: %v", keys)
	}
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	t.Setenv("REELCORE_LOG_DRIVER", "")
	log, err := Open(filepath.Join(t.TempDir(), "p.reel"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = log.Close() }()
	if _, ok := log.(*SQLiteLog); !ok {
		t.Fatalf("expected *SQLiteLog, got %T", log)
	}
}

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("REELCORE_LOG_DRIVER", "memory")
	log, err := Open("ignored")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := log.(*MemoryLog); !ok {
		t.Fatalf("expected *MemoryLog, got %T", log)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Setenv("REELCORE_LOG_DRIVER", "bogus")
	if _, err := Open("p.reel"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
