package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account holds a participant's token balance and replay-protection nonce.
// Minted tracks the lifetime amount the account has minted for itself.
type Account struct {
	Address common.Address `json:"address"`
	Balance uint256.Int    `json:"balance"`
	Nonce   uint64         `json:"nonce"`
	Minted  uint256.Int    `json:"minted"`
}

// Allowance is the amount Spender may pull from Owner via transferFrom.
type Allowance struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  uint256.Int    `json:"amount"`
}

// Game is one creator-initiated competition.
type Game struct {
	ID             uint64           `json:"id"`
	Creator        common.Address   `json:"creator"`
	CreatorHandle  string           `json:"creator_handle"`
	Stage          uint8            `json:"stage"`      // global stage pointer, 1..4
	StartTime      int64            `json:"start_time"` // unix seconds
	Duration       int64            `json:"duration"`   // seconds
	Ended          bool             `json:"ended"`
	PlayerCount    uint32           `json:"player_count"`
	QuestionHashes [3]common.Hash   `json:"question_hashes"`
	PerfectScorers []common.Address `json:"perfect_scorers"`
}

// Deadline returns the unix time after which joins and submissions are refused.
func (g *Game) Deadline() int64 {
	return g.StartTime + g.Duration
}

// Expired reports whether now is at or past the deadline.
func (g *Game) Expired(now int64) bool {
	return now >= g.Deadline()
}

// PlayerEntry is a player's slot in a game. Slots are never deleted; a rejoin
// after elimination resets every field.
type PlayerEntry struct {
	GameID         uint64         `json:"game_id"`
	Player         common.Address `json:"player"`
	Handle         string         `json:"handle"`
	CurrentStage   uint8          `json:"current_stage"`
	Score          uint8          `json:"score"`
	CompletionTime int64          `json:"completion_time"`
	InGame         bool           `json:"in_game"`
	Submitted      [4]bool        `json:"submitted"` // index = stage, 0 unused
}

// StakeRecord is the escrowed amount of one player in one game.
type StakeRecord struct {
	GameID uint64         `json:"game_id"`
	Player common.Address `json:"player"`
	Amount uint256.Int    `json:"amount"`
}

// GameStakes aggregates the escrow of a game. Forfeited is the forfeiture
// pool; Residual holds rounding dust and unpaid winner slots.
type GameStakes struct {
	GameID      uint64      `json:"game_id"`
	TotalStaked uint256.Int `json:"total_staked"`
	Forfeited   uint256.Int `json:"forfeited"`
	Residual    uint256.Int `json:"residual"`
}

// NFT is a minted rank badge.
type NFT struct {
	TokenID  uint64         `json:"token_id"`
	Owner    common.Address `json:"owner"`
	GameID   uint64         `json:"game_id"`
	Rank     uint8          `json:"rank"`
	TokenURI string         `json:"token_uri"`
	MintedAt int64          `json:"minted_at"`
}

// NameRecord maps a handle's node hash to an address.
type NameRecord struct {
	Node    common.Hash    `json:"node"`
	Handle  string         `json:"handle"`
	Address common.Address `json:"address"`
}

// Params is the singleton chain parameter record.
type Params struct {
	GameCounter   uint64         `json:"game_counter"`
	NFTCounter    uint64         `json:"nft_counter"`
	BackendSigner common.Address `json:"backend_signer"`
	StakingPaused bool           `json:"staking_paused"`
	MintingPaused bool           `json:"minting_paused"`
	TotalMinted   uint256.Int    `json:"total_minted"`
}

// State is the full world-state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Token
	GetAccount(addr common.Address) (*Account, error)
	SetAccount(acc *Account) error
	GetAllowance(owner, spender common.Address) (*Allowance, error)
	SetAllowance(a *Allowance) error

	// Games
	GetGame(id uint64) (*Game, error)
	SetGame(g *Game) error
	GetPlayer(gameID uint64, player common.Address) (*PlayerEntry, error)
	SetPlayer(p *PlayerEntry) error

	// Staking
	GetStake(gameID uint64, player common.Address) (*StakeRecord, error)
	SetStake(s *StakeRecord) error
	GetGameStakes(gameID uint64) (*GameStakes, error)
	SetGameStakes(s *GameStakes) error

	// NFTs
	GetNFT(tokenID uint64) (*NFT, error)
	SetNFT(n *NFT) error

	// Names
	GetName(node common.Hash) (*NameRecord, error)
	SetName(r *NameRecord) error

	// Params
	GetParams() (*Params, error)
	SetParams(p *Params) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
