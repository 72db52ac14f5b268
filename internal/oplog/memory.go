package oplog

import (
	"sort"
	"sync"
)

// MemoryLog is an in-memory Log for tests and ephemeral projects.
type MemoryLog struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryLog constructs an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{records: make(map[string][]byte)}
}

type memoryBatch struct {
	log    *MemoryLog
	writes []struct {
		key   string
		value []byte
	}
}

// Begin starts a new write batch.
func (l *MemoryLog) Begin() Batch { return &memoryBatch{log: l} }

func (b *memoryBatch) Put(key, value []byte) {
	b.writes = append(b.writes, struct {
		key   string
		value []byte
	}{string(key), append([]byte(nil), value...)})
}

func (b *memoryBatch) Commit() error {
	b.log.mu.Lock()
	defer b.log.mu.Unlock()
	for _, w := range b.writes {
		b.log.records[w.key] = w.value
	}
	b.writes = nil
	return nil
}

// Iterate visits records in ascending key order.
func (l *MemoryLog) Iterate(fn func(key, value []byte) error) error {
	l.mu.Lock()
	keys := make([]string, 0, len(l.records))
	for k := range l.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snapshot := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, [2][]byte{[]byte(k), l.records[k]})
	}
	l.mu.Unlock()
	for _, rec := range snapshot {
		if err := fn(rec[0], rec[1]); err != nil {
			return err
		}
	}
	return nil
}

// Close releases nothing; it exists to satisfy Log.
func (l *MemoryLog) Close() error { return nil }
