// Package staking escrows player stakes per game, applies stage-indexed
// partial refunds, pools forfeitures and pays them out at game end.
package staking

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/crypto"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// EscrowAddress is the token account holding every game's stakes. No key
// controls it; only the ledger moves funds out of it.
var EscrowAddress = common.BytesToAddress(crypto.HashBytes([]byte("triviachain/staking/escrow"))[12:])

// Distribution shares of the forfeiture pool, in percent.
const (
	CreatorShare  = 20
	PlatformShare = 20
	WinnersShare  = 60
	WinnerSlots   = 3
)

var hundred = uint256.NewInt(100)

// refundTable maps the stage a player left the game at to the percentage of
// the stake returned. Stage 4 is the all-stages-cleared tier.
var refundTable = map[uint8]uint64{1: 0, 2: 30, 3: 70, 4: 100}

// RefundPercentage returns the refund percentage for stage.
func RefundPercentage(stage uint8) (uint64, error) {
	pct, ok := refundTable[stage]
	if !ok {
		return 0, fmt.Errorf("stage %d: %w", stage, core.ErrInvalidRefundPercentage)
	}
	return pct, nil
}

// Token is the subset of the token ledger the escrow needs.
type Token interface {
	Transfer(ctx *vm.Context, from, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx *vm.Context, spender, owner, recipient common.Address, amount *uint256.Int) error
}

// Ledger is the stake ledger. It holds no state of its own; every record
// lives in core.State so it reverts with the enclosing transaction.
type Ledger struct {
	token  Token
	logger *zap.Logger
}

// NewLedger returns a Ledger moving funds through token.
func NewLedger(token Token, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{token: token, logger: logger.Named("staking")}
}

// StakeOf returns the live stake of player in gameID.
func (l *Ledger) StakeOf(st core.State, gameID uint64, player common.Address) (*uint256.Int, error) {
	r, err := st.GetStake(gameID, player)
	if err != nil {
		return nil, err
	}
	return r.Amount.Clone(), nil
}

// Stake pulls amount from player into escrow for gameID. The player must
// have approved EscrowAddress beforehand.
func (l *Ledger) Stake(ctx *vm.Context, gameID uint64, player common.Address, amount *uint256.Int) error {
	params, err := ctx.State.GetParams()
	if err != nil {
		return err
	}
	if params.StakingPaused {
		return fmt.Errorf("stake: %w", core.ErrStakingPaused)
	}
	if amount.IsZero() {
		return fmt.Errorf("stake: %w", core.ErrInvalidAmount)
	}
	if err := l.token.TransferFrom(ctx, EscrowAddress, player, EscrowAddress, amount); err != nil {
		return fmt.Errorf("stake: %w", err)
	}

	rec, err := ctx.State.GetStake(gameID, player)
	if err != nil {
		return err
	}
	rec.Amount.Add(&rec.Amount, amount)
	if err := ctx.State.SetStake(rec); err != nil {
		return err
	}
	gs, err := ctx.State.GetGameStakes(gameID)
	if err != nil {
		return err
	}
	gs.TotalStaked.Add(&gs.TotalStaked, amount)
	if err := ctx.State.SetGameStakes(gs); err != nil {
		return err
	}

	ctx.Emit(events.EventStakeDeposited, map[string]any{
		"game_id": gameID,
		"player":  player.Hex(),
		"amount":  amount.Dec(),
	})
	return nil
}

// Refund returns stake*pct(stage)/100 to player, moves the rest into the
// forfeiture pool and zeroes the stake record. It returns the refunded amount.
func (l *Ledger) Refund(ctx *vm.Context, gameID uint64, player common.Address, stage uint8) (*uint256.Int, error) {
	pct, err := RefundPercentage(stage)
	if err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}
	rec, err := ctx.State.GetStake(gameID, player)
	if err != nil {
		return nil, err
	}
	if rec.Amount.IsZero() {
		return nil, fmt.Errorf("refund: %w", core.ErrNoStakeFound)
	}

	staked := rec.Amount.Clone()
	refund, _ := new(uint256.Int).MulDivOverflow(staked, uint256.NewInt(pct), hundred)
	forfeit := new(uint256.Int).Sub(staked, refund)

	rec.Amount.Clear()
	if err := ctx.State.SetStake(rec); err != nil {
		return nil, err
	}
	if !refund.IsZero() {
		if err := l.token.Transfer(ctx, EscrowAddress, player, refund); err != nil {
			return nil, fmt.Errorf("refund: %w", err)
		}
	}
	if !forfeit.IsZero() {
		gs, err := ctx.State.GetGameStakes(gameID)
		if err != nil {
			return nil, err
		}
		gs.Forfeited.Add(&gs.Forfeited, forfeit)
		if err := ctx.State.SetGameStakes(gs); err != nil {
			return nil, err
		}
	}

	ctx.Emit(events.EventStakeRefunded, map[string]any{
		"game_id":   gameID,
		"player":    player.Hex(),
		"stage":     stage,
		"refunded":  refund.Dec(),
		"forfeited": forfeit.Dec(),
	})
	l.logger.Debug("refund",
		zap.Uint64("game", gameID),
		zap.Stringer("player", player),
		zap.Uint8("stage", stage),
		zap.String("refunded", refund.Dec()))
	return refund, nil
}

// Payout describes how a forfeiture pool was split.
type Payout struct {
	Pool      *uint256.Int
	Creator   *uint256.Int
	Platform  *uint256.Int
	PerWinner *uint256.Int
	Retained  *uint256.Int
}

// Split computes the 20/20/60 division of pool with floor division. The
// winner share is three equal slots; the remainder is Retained.
func Split(pool *uint256.Int) Payout {
	creator, _ := new(uint256.Int).MulDivOverflow(pool, uint256.NewInt(CreatorShare), hundred)
	platform, _ := new(uint256.Int).MulDivOverflow(pool, uint256.NewInt(PlatformShare), hundred)
	winners, _ := new(uint256.Int).MulDivOverflow(pool, uint256.NewInt(WinnersShare), hundred)
	perWinner := new(uint256.Int).Div(winners, uint256.NewInt(WinnerSlots))

	paid := new(uint256.Int).Add(creator, platform)
	paid.Add(paid, new(uint256.Int).Mul(perWinner, uint256.NewInt(WinnerSlots)))
	return Payout{
		Pool:      pool.Clone(),
		Creator:   creator,
		Platform:  platform,
		PerWinner: perWinner,
		Retained:  new(uint256.Int).Sub(pool, paid),
	}
}

// DistributeRewards pays out the forfeiture pool of gameID. winners must have
// exactly three slots; zero-address slots are not paid and their share is
// retained together with any rounding remainder.
func (l *Ledger) DistributeRewards(ctx *vm.Context, gameID uint64, creator, platform common.Address, winners []common.Address) error {
	if len(winners) != WinnerSlots {
		return fmt.Errorf("distribute: got %d: %w", len(winners), core.ErrInvalidWinnerCount)
	}
	gs, err := ctx.State.GetGameStakes(gameID)
	if err != nil {
		return err
	}
	if gs.Forfeited.IsZero() {
		return fmt.Errorf("distribute: %w", core.ErrNoForfeitedStakes)
	}

	p := Split(&gs.Forfeited)
	retained := p.Retained.Clone()
	if err := l.pay(ctx, creator, p.Creator, retained); err != nil {
		return err
	}
	if err := l.pay(ctx, platform, p.Platform, retained); err != nil {
		return err
	}
	for _, w := range winners {
		if err := l.pay(ctx, w, p.PerWinner, retained); err != nil {
			return err
		}
	}

	gs.Forfeited.Clear()
	gs.TotalStaked.Clear()
	gs.Residual.Add(&gs.Residual, retained)
	if err := ctx.State.SetGameStakes(gs); err != nil {
		return err
	}

	names := make([]string, len(winners))
	for i, w := range winners {
		names[i] = w.Hex()
	}
	ctx.Emit(events.EventRewardsDistributed, map[string]any{
		"game_id":        gameID,
		"pool":           p.Pool.Dec(),
		"creator":        creator.Hex(),
		"creator_share":  p.Creator.Dec(),
		"platform":       platform.Hex(),
		"platform_share": p.Platform.Dec(),
		"winner_share":   p.PerWinner.Dec(),
		"winners":        names,
		"retained":       retained.Dec(),
	})
	l.logger.Debug("distributed",
		zap.Uint64("game", gameID),
		zap.String("pool", p.Pool.Dec()),
		zap.String("retained", retained.Dec()))
	return nil
}

// pay moves amount out of escrow to to. A zero recipient's share is added
// to retained instead.
func (l *Ledger) pay(ctx *vm.Context, to common.Address, amount, retained *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if to == (common.Address{}) {
		retained.Add(retained, amount)
		return nil
	}
	if err := l.token.Transfer(ctx, EscrowAddress, to, amount); err != nil {
		return fmt.Errorf("payout to %s: %w", to, err)
	}
	return nil
}

// SetPaused toggles staking. Authorization is the caller's job.
func (l *Ledger) SetPaused(ctx *vm.Context, paused bool) error {
	params, err := ctx.State.GetParams()
	if err != nil {
		return err
	}
	params.StakingPaused = paused
	if err := ctx.State.SetParams(params); err != nil {
		return err
	}
	typ := events.EventStakingUnpaused
	if paused {
		typ = events.EventStakingPaused
	}
	ctx.Emit(typ, map[string]any{"by": ctx.Caller().Hex()})
	return nil
}

// Sweep moves the unconsumed forfeiture pool and the retained residual of
// gameID to recipient and returns the amount moved. Callers must make sure
// the game is over.
func (l *Ledger) Sweep(ctx *vm.Context, gameID uint64, recipient common.Address) (*uint256.Int, error) {
	if recipient == (common.Address{}) {
		return nil, fmt.Errorf("sweep: %w", core.ErrInvalidAddress)
	}
	gs, err := ctx.State.GetGameStakes(gameID)
	if err != nil {
		return nil, err
	}
	amount := new(uint256.Int).Add(&gs.Forfeited, &gs.Residual)
	if amount.IsZero() {
		return nil, fmt.Errorf("sweep: %w", core.ErrNothingToSweep)
	}
	if err := l.token.Transfer(ctx, EscrowAddress, recipient, amount); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	gs.Forfeited.Clear()
	gs.Residual.Clear()
	if err := ctx.State.SetGameStakes(gs); err != nil {
		return nil, err
	}
	ctx.Emit(events.EventForfeituresSwept, map[string]any{
		"game_id":   gameID,
		"recipient": recipient.Hex(),
		"amount":    amount.Dec(),
	})
	return amount, nil
}
