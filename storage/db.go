package storage

// DB is the key-value store under the world state, the receipt store and
// the indexer. Chain records are only ever written or overwritten, never
// removed, so the interface has no delete.
type DB interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	NewIterator(prefix []byte) Iterator
	NewBatch() Batch
	Close() error
}

// Iterator walks the entries under one key prefix in key order. ComputeRoot
// uses it to scan each state prefix.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Batch collects one transaction's state writes so Commit lands them
// together.
type Batch interface {
	Set(key, value []byte)
	Write() error
}
