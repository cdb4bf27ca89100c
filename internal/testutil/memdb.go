// Package testutil provides in-memory stand-ins for the chain's storage and
// clock. Never import this in production code.
package testutil

import (
	"slices"
	"strings"
	"sync"

	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/storage"
)

// MemDB is a map-backed storage.DB. Values are copied in and out so a
// caller mutating a slice cannot corrupt committed state.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemDB) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = slices.Clone(value)
	return nil
}

// NewIterator snapshots the entries under prefix in key order.
func (m *MemDB) NewIterator(prefix []byte) storage.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	it := &memIter{idx: -1}
	for _, k := range keys {
		it.keys = append(it.keys, k)
		it.values = append(it.values, slices.Clone(m.data[k]))
	}
	return it
}

func (m *MemDB) NewBatch() storage.Batch {
	return &memBatch{db: m, writes: make(map[string][]byte)}
}

func (m *MemDB) Close() error { return nil }

// Len reports how many keys are stored.
func (m *MemDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

type memBatch struct {
	db     *MemDB
	writes map[string][]byte
}

func (b *memBatch) Set(key, value []byte) {
	b.writes[string(key)] = slices.Clone(value)
}

// Write applies every buffered write under one lock.
func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for k, v := range b.writes {
		b.db.data[k] = v
	}
	return nil
}

type memIter struct {
	keys   []string
	values [][]byte
	idx    int
}

func (it *memIter) Next() bool    { it.idx++; return it.idx < len(it.keys) }
func (it *memIter) Key() []byte   { return []byte(it.keys[it.idx]) }
func (it *memIter) Value() []byte { return it.values[it.idx] }
func (it *memIter) Release()      {}
func (it *memIter) Error() error  { return nil }

// NewStateDB returns a storage.StateDB backed by a fresh MemDB.
func NewStateDB() *storage.StateDB {
	return storage.NewStateDB(NewMemDB())
}
