// Package indexer maintains secondary indexes over committed transactions so
// clients can query games and badges by address without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/storage"
	"go.uber.org/zap"
)

const (
	prefixPlayerGames  = "idx:player:game:"
	prefixCreatorGames = "idx:creator:game:"
	prefixOwnerNFTs    = "idx:owner:nft:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db     storage.DB
	logger *zap.Logger
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Indexer{db: db, logger: logger.Named("indexer")}
	emitter.Subscribe(events.EventGameCreated, idx.onGameCreated)
	emitter.Subscribe(events.EventPlayerJoined, idx.onPlayerJoined)
	emitter.Subscribe(events.EventNFTMinted, idx.onNFTMinted)
	return idx
}

// GamesByPlayer returns the ids of every game player joined, in join order.
func (idx *Indexer) GamesByPlayer(player common.Address) ([]uint64, error) {
	return idx.getList(prefixPlayerGames + addrKey(player))
}

// GamesByCreator returns the ids of every game creator opened.
func (idx *Indexer) GamesByCreator(creator common.Address) ([]uint64, error) {
	return idx.getList(prefixCreatorGames + addrKey(creator))
}

// NFTsByOwner returns the token ids of every badge minted to owner.
func (idx *Indexer) NFTsByOwner(owner common.Address) ([]uint64, error) {
	return idx.getList(prefixOwnerNFTs + addrKey(owner))
}

// ---- event handlers ----

func (idx *Indexer) onGameCreated(ev events.Event) {
	creator, _ := ev.Data["creator"].(string)
	id, ok := ev.Data["game_id"].(uint64)
	if creator == "" || !ok {
		return
	}
	idx.add(prefixCreatorGames+strings.ToLower(creator), id)
}

func (idx *Indexer) onPlayerJoined(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	id, ok := ev.Data["game_id"].(uint64)
	if player == "" || !ok {
		return
	}
	idx.add(prefixPlayerGames+strings.ToLower(player), id)
}

func (idx *Indexer) onNFTMinted(ev events.Event) {
	owner, _ := ev.Data["recipient"].(string)
	id, ok := ev.Data["token_id"].(uint64)
	if owner == "" || !ok {
		return
	}
	idx.add(prefixOwnerNFTs+strings.ToLower(owner), id)
}

func (idx *Indexer) add(key string, id uint64) {
	if err := idx.addToList(key, id); err != nil {
		idx.logger.Error("update index", zap.String("key", key), zap.Error(err))
	}
}

// ---- list helpers ----

func addrKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func (idx *Indexer) getList(key string) ([]uint64, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

// addToList appends value unless it is already present; a rejoin does not
// list the same game twice.
func (idx *Indexer) addToList(key string, value uint64) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	if slices.Contains(ids, value) {
		return nil
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
