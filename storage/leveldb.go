package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/tolelom/triviachain/core"
)

// LevelDB implements DB using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, core.ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, b: new(leveldb.Batch)}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) { b.b.Put(key, value) }
func (b *levelBatch) Write() error          { return b.db.Write(b.b, nil) }

// ---- ReceiptStore ----

const (
	prefixReceipt = "rcpt:"
	keyHead       = "chain:head"
)

// ReceiptStore persists transaction receipts and the sequencer height
// outside the world state, so rejected transactions are recorded too.
type ReceiptStore struct {
	db DB
}

// NewReceiptStore wraps db as a ReceiptStore.
func NewReceiptStore(db DB) *ReceiptStore {
	return &ReceiptStore{db: db}
}

func (s *ReceiptStore) PutReceipt(r *core.Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(prefixReceipt+r.TxID), data)
}

func (s *ReceiptStore) GetReceipt(txID string) (*core.Receipt, error) {
	data, err := s.db.Get([]byte(prefixReceipt + txID))
	if err != nil {
		return nil, err
	}
	var r core.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Head is the sequencer position: the height and chain time of the last
// executed transaction.
type Head struct {
	Height uint64 `json:"height"`
	Time   int64  `json:"time"`
}

// Head returns the last persisted sequencer position (zero for a fresh chain).
func (s *ReceiptStore) Head() (Head, error) {
	data, err := s.db.Get([]byte(keyHead))
	if errors.Is(err, core.ErrNotFound) {
		return Head{}, nil
	}
	if err != nil {
		return Head{}, err
	}
	var h Head
	if err := json.Unmarshal(data, &h); err != nil {
		return Head{}, err
	}
	return h, nil
}

func (s *ReceiptStore) SetHead(h Head) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(keyHead), data)
}
