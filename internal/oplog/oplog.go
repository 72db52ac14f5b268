// Package oplog provides the durable ordered key/value log backing a
// project file. Writes are grouped into batches that commit atomically;
// iteration yields records in key order, which the document model arranges
// to equal commit order for command records.
package oplog

// Batch collects writes that must become durable together.
type Batch interface {
	// Put stages a record. Staged writes are invisible until Commit.
	Put(key, value []byte)
	// Commit makes every staged write durable atomically, or none of them.
	Commit() error
}

// Log is an ordered key/value store with atomic multi-key batches.
type Log interface {
	Begin() Batch
	// Iterate calls fn for every record in ascending key order. The slices
	// are only valid for the duration of the callback.
	Iterate(fn func(key, value []byte) error) error
	Close() error
}
