// Package nft mints the rank badges awarded to game winners.
package nft

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// TokenURI is the metadata shared by every badge.
const TokenURI = "ipfs://bafybeigofcndglhgthcq6qrmj3nuc3ahn7diovjxytuifk54t5svhufe4i"

// Minter issues badges. Token ids start at 1.
type Minter struct {
	logger *zap.Logger
}

// NewMinter returns a Minter.
func NewMinter(logger *zap.Logger) *Minter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Minter{logger: logger.Named("nft")}
}

// Mint issues a badge of rank for gameID to recipient and returns its id.
func (m *Minter) Mint(ctx *vm.Context, recipient common.Address, gameID uint64, rank uint8, uri string) (uint64, error) {
	if recipient == (common.Address{}) {
		return 0, fmt.Errorf("mint nft: %w", core.ErrInvalidAddress)
	}
	if rank < 1 || rank > 3 {
		return 0, fmt.Errorf("mint nft: rank %d: %w", rank, core.ErrInvalidRank)
	}
	if uri == "" {
		return 0, fmt.Errorf("mint nft: %w", core.ErrInvalidTokenURI)
	}
	params, err := ctx.State.GetParams()
	if err != nil {
		return 0, err
	}
	params.NFTCounter++
	id := params.NFTCounter
	if err := ctx.State.SetParams(params); err != nil {
		return 0, err
	}
	badge := &core.NFT{
		TokenID:  id,
		Owner:    recipient,
		GameID:   gameID,
		Rank:     rank,
		TokenURI: uri,
		MintedAt: ctx.Now(),
	}
	if err := ctx.State.SetNFT(badge); err != nil {
		return 0, err
	}
	ctx.Emit(events.EventNFTMinted, map[string]any{
		"token_id":  id,
		"recipient": recipient.Hex(),
		"game_id":   gameID,
		"rank":      rank,
		"token_uri": uri,
	})
	m.logger.Debug("minted", zap.Uint64("token", id), zap.Uint64("game", gameID), zap.Uint8("rank", rank))
	return id, nil
}

// OwnerOf returns the owner of tokenID.
func (m *Minter) OwnerOf(st core.State, tokenID uint64) (common.Address, error) {
	n, err := st.GetNFT(tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return n.Owner, nil
}

// TokenURIOf returns the metadata URI of tokenID.
func (m *Minter) TokenURIOf(st core.State, tokenID uint64) (string, error) {
	n, err := st.GetNFT(tokenID)
	if err != nil {
		return "", err
	}
	return n.TokenURI, nil
}
