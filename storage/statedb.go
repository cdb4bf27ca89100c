package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount    = registerPrefix("acct:")
	prefixAllowance  = registerPrefix("allow:")
	prefixGame       = registerPrefix("game:")
	prefixPlayer     = registerPrefix("player:")
	prefixStake      = registerPrefix("stake:")
	prefixGameStakes = registerPrefix("gstake:")
	prefixNFT        = registerPrefix("nft:")
	prefixName       = registerPrefix("name:")
	keyParams        = registerPrefix("params")
)

type stateSnapshot struct {
	dirty map[string][]byte
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:    db,
		dirty: make(map[string][]byte),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.dirty[key] = val
}

// load decodes the record at key into out. found is false when the key is
// absent, which callers either report as core.ErrNotFound or treat as a
// zero-value record.
func (s *StateDB) load(key string, out any) (found bool, err error) {
	data, err := s.get(key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *StateDB) store(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

func gameKey(id uint64) string {
	return fmt.Sprintf("%020d", id)
}

func pairKey(gameID uint64, addr common.Address) string {
	return gameKey(gameID) + ":" + strings.ToLower(addr.Hex())
}

func addrKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// ---- Token ----

func (s *StateDB) GetAccount(addr common.Address) (*core.Account, error) {
	acc := &core.Account{Address: addr}
	if _, err := s.load(prefixAccount+addrKey(addr), acc); err != nil {
		return nil, err
	}
	return acc, nil // zero-value account when absent
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.store(prefixAccount+addrKey(acc.Address), acc)
}

func (s *StateDB) GetAllowance(owner, spender common.Address) (*core.Allowance, error) {
	a := &core.Allowance{Owner: owner, Spender: spender}
	if _, err := s.load(prefixAllowance+addrKey(owner)+":"+addrKey(spender), a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *StateDB) SetAllowance(a *core.Allowance) error {
	return s.store(prefixAllowance+addrKey(a.Owner)+":"+addrKey(a.Spender), a)
}

// ---- Games ----

func (s *StateDB) GetGame(id uint64) (*core.Game, error) {
	var g core.Game
	found, err := s.load(prefixGame+gameKey(id), &g)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, core.ErrNotFound
	}
	return &g, nil
}

func (s *StateDB) SetGame(g *core.Game) error {
	return s.store(prefixGame+gameKey(g.ID), g)
}

func (s *StateDB) GetPlayer(gameID uint64, player common.Address) (*core.PlayerEntry, error) {
	var p core.PlayerEntry
	found, err := s.load(prefixPlayer+pairKey(gameID, player), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *StateDB) SetPlayer(p *core.PlayerEntry) error {
	return s.store(prefixPlayer+pairKey(p.GameID, p.Player), p)
}

// ---- Staking ----

func (s *StateDB) GetStake(gameID uint64, player common.Address) (*core.StakeRecord, error) {
	r := &core.StakeRecord{GameID: gameID, Player: player}
	if _, err := s.load(prefixStake+pairKey(gameID, player), r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *StateDB) SetStake(r *core.StakeRecord) error {
	return s.store(prefixStake+pairKey(r.GameID, r.Player), r)
}

func (s *StateDB) GetGameStakes(gameID uint64) (*core.GameStakes, error) {
	gs := &core.GameStakes{GameID: gameID}
	if _, err := s.load(prefixGameStakes+gameKey(gameID), gs); err != nil {
		return nil, err
	}
	return gs, nil
}

func (s *StateDB) SetGameStakes(gs *core.GameStakes) error {
	return s.store(prefixGameStakes+gameKey(gs.GameID), gs)
}

// ---- NFTs ----

func (s *StateDB) GetNFT(tokenID uint64) (*core.NFT, error) {
	var n core.NFT
	found, err := s.load(prefixNFT+gameKey(tokenID), &n)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, core.ErrNotFound
	}
	return &n, nil
}

func (s *StateDB) SetNFT(n *core.NFT) error {
	return s.store(prefixNFT+gameKey(n.TokenID), n)
}

// ---- Names ----

func (s *StateDB) GetName(node common.Hash) (*core.NameRecord, error) {
	var r core.NameRecord
	found, err := s.load(prefixName+node.Hex(), &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, core.ErrNotFound
	}
	return &r, nil
}

func (s *StateDB) SetName(r *core.NameRecord) error {
	return s.store(prefixName+r.Node.Hex(), r)
}

// ---- Params ----

func (s *StateDB) GetParams() (*core.Params, error) {
	p := &core.Params{}
	if _, err := s.load(keyParams, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *StateDB) SetParams(p *core.Params) error {
	return s.store(keyParams, p)
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{dirty: make(map[string][]byte, len(s.dirty))}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}

	s.dirty = dirty
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding.  It does NOT flush or modify state,
// so it is safe to call before sealing a receipt.
func (s *StateDB) ComputeRoot() string {
	// Step 1: collect all persisted state entries from DB.
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	// Step 2: apply in-memory write buffer (uncommitted changes of this transaction).
	for k, v := range s.dirty {
		merged[k] = v
	}

	// Step 3: sort keys for determinism.
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Step 4: length-prefix encode each key-value pair and hash.
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// WriteBatch and then clears it. The executor calls it once per executed
// transaction, after any handler failure has been reverted.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.snapshots = nil
	return nil
}
