// Package reward settles an ended game: rank badges for the winners and the
// payout of the forfeiture pool.
package reward

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/nft"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// Minter issues rank badges.
type Minter interface {
	Mint(ctx *vm.Context, recipient common.Address, gameID uint64, rank uint8, uri string) (uint64, error)
}

// Ledger pays out a game's forfeiture pool.
type Ledger interface {
	DistributeRewards(ctx *vm.Context, gameID uint64, creator, platform common.Address, winners []common.Address) error
}

// Result reports what a settlement did.
type Result struct {
	TokenIDs []uint64 `json:"token_ids"`
	Paid     bool     `json:"paid"`
}

// Distributor settles ended games.
type Distributor struct {
	minter   Minter
	ledger   Ledger
	platform common.Address
	logger   *zap.Logger
}

// NewDistributor returns a Distributor paying the platform share to platform.
func NewDistributor(minter Minter, ledger Ledger, platform common.Address, logger *zap.Logger) *Distributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributor{minter: minter, ledger: ledger, platform: platform, logger: logger.Named("reward")}
}

// Platform returns the address receiving the platform share.
func (d *Distributor) Platform() common.Address { return d.platform }

// Distribute mints one badge per non-empty winner slot, ranked by position,
// then pays out the forfeiture pool if there is one. With no winners at all
// nothing is minted and nothing moves; the pool stays in escrow.
func (d *Distributor) Distribute(ctx *vm.Context, g *core.Game, winners [3]common.Address) (*Result, error) {
	res := &Result{}
	if winners == ([3]common.Address{}) {
		d.logger.Debug("no winners", zap.Uint64("game", g.ID))
		return res, nil
	}

	for i, w := range winners {
		if w == (common.Address{}) {
			continue
		}
		id, err := d.minter.Mint(ctx, w, g.ID, uint8(i+1), nft.TokenURI)
		if err != nil {
			return nil, fmt.Errorf("mint rank %d: %w", i+1, err)
		}
		res.TokenIDs = append(res.TokenIDs, id)
	}

	gs, err := ctx.State.GetGameStakes(g.ID)
	if err != nil {
		return nil, err
	}
	if gs.Forfeited.IsZero() {
		d.logger.Debug("empty pool", zap.Uint64("game", g.ID))
		return res, nil
	}
	if err := d.ledger.DistributeRewards(ctx, g.ID, g.Creator, d.platform, winners[:]); err != nil {
		return nil, err
	}
	res.Paid = true
	return res, nil
}
