package game

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/reward"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// AdvanceStage moves the global stage pointer of gameID forward by one.
func (m *Machine) AdvanceStage(ctx *vm.Context, gameID uint64) error {
	if err := m.admin.Authorize(ctx.Caller()); err != nil {
		return err
	}
	g, err := m.Game(ctx.State, gameID)
	if err != nil {
		return err
	}
	if g.Ended {
		return fmt.Errorf("game %d: %w", gameID, core.ErrGameAlreadyEnded)
	}
	if g.Stage >= StageCleared {
		return fmt.Errorf("game %d: %w", gameID, core.ErrFinalStage)
	}
	g.Stage++
	if err := ctx.State.SetGame(g); err != nil {
		return err
	}
	ctx.Emit(events.EventStageAdvanced, map[string]any{
		"game_id": gameID,
		"stage":   g.Stage,
	})
	m.logger.Debug("stage advanced", zap.Uint64("game", gameID), zap.Uint8("stage", g.Stage))
	return nil
}

// RefundPlayer removes player from gameID with the refund tier of the
// player's own current stage. It also settles stragglers of ended games.
func (m *Machine) RefundPlayer(ctx *vm.Context, gameID uint64, player common.Address) error {
	if err := m.admin.Authorize(ctx.Caller()); err != nil {
		return err
	}
	g, err := m.Game(ctx.State, gameID)
	if err != nil {
		return err
	}
	in, err := m.IsPlayerInGame(ctx.State, gameID, player)
	if err != nil {
		return err
	}
	if !in {
		return fmt.Errorf("game %d: %s: %w", gameID, player, core.ErrPlayerNotInGame)
	}
	entry, err := ctx.State.GetPlayer(gameID, player)
	if err != nil {
		return err
	}
	stage := entry.CurrentStage

	entry.InGame = false
	if err := ctx.State.SetPlayer(entry); err != nil {
		return err
	}
	g.PlayerCount--
	if err := ctx.State.SetGame(g); err != nil {
		return err
	}
	refunded, err := m.ledger.Refund(ctx, gameID, player, stage)
	if err != nil {
		return err
	}

	ctx.Emit(events.EventPlayerRefunded, map[string]any{
		"game_id": gameID,
		"player":  player.Hex(),
		"stage":   stage,
		"amount":  refunded.Dec(),
	})
	ctx.Emit(events.EventPlayerEliminated, map[string]any{
		"game_id":  gameID,
		"player":   player.Hex(),
		"stage":    stage,
		"score":    0,
		"refunded": refunded.Dec(),
	})
	m.logger.Debug("player refunded",
		zap.Uint64("game", gameID),
		zap.Stringer("player", player),
		zap.Uint8("stage", stage),
		zap.String("amount", refunded.Dec()))
	return nil
}

// EndGame settles gameID once its duration has elapsed.
func (m *Machine) EndGame(ctx *vm.Context, gameID uint64) (*reward.Result, error) {
	return m.end(ctx, gameID, false)
}

// AutoEndGame is the scheduled entry point for ending an expired game. It
// has the same preconditions and effect as EndGame.
func (m *Machine) AutoEndGame(ctx *vm.Context, gameID uint64) (*reward.Result, error) {
	return m.end(ctx, gameID, true)
}

func (m *Machine) end(ctx *vm.Context, gameID uint64, auto bool) (*reward.Result, error) {
	if err := m.admin.Authorize(ctx.Caller()); err != nil {
		return nil, err
	}
	g, err := m.Game(ctx.State, gameID)
	if err != nil {
		return nil, err
	}
	if g.Ended {
		return nil, fmt.Errorf("game %d: %w", gameID, core.ErrGameAlreadyEnded)
	}
	if !g.Expired(ctx.Now()) {
		return nil, fmt.Errorf("game %d ends at %d: %w", gameID, g.Deadline(), core.ErrGameNotExpired)
	}

	g.Ended = true
	winners := Winners(g)
	if err := m.releaseFinishers(ctx, g); err != nil {
		return nil, err
	}
	if err := ctx.State.SetGame(g); err != nil {
		return nil, err
	}

	res, err := m.distributor.Distribute(ctx, g, winners)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(winners))
	for i, w := range winners {
		names[i] = w.Hex()
	}
	ctx.Emit(events.EventGameEnded, map[string]any{
		"game_id": gameID,
		"winners": names,
		"auto":    auto,
	})
	m.logger.Debug("game ended",
		zap.Uint64("game", gameID),
		zap.Int("perfect", len(g.PerfectScorers)),
		zap.Bool("paid", res.Paid))
	return res, nil
}

// Winners returns the first three perfect scorers of g in completion order,
// padded with the zero address.
func Winners(g *core.Game) [3]common.Address {
	var w [3]common.Address
	copy(w[:], g.PerfectScorers)
	return w
}

// releaseFinishers returns the full stake of every player whose current slot
// cleared the final stage and takes them out of the game. A scorer that was
// refunded and rejoined holds a fresh slot; it stays in the game for
// RefundPlayer.
func (m *Machine) releaseFinishers(ctx *vm.Context, g *core.Game) error {
	seen := make(map[common.Address]bool, len(g.PerfectScorers))
	for _, addr := range g.PerfectScorers {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		entry, err := ctx.State.GetPlayer(g.ID, addr)
		if err != nil {
			return err
		}
		if !entry.InGame || entry.CurrentStage != StageCleared || entry.CompletionTime == 0 {
			continue
		}
		entry.InGame = false
		if err := ctx.State.SetPlayer(entry); err != nil {
			return err
		}
		g.PlayerCount--
		if _, err := m.ledger.Refund(ctx, g.ID, addr, StageCleared); err != nil {
			return err
		}
	}
	return nil
}

// SetBackendSigner replaces the trusted backend signer.
func (m *Machine) SetBackendSigner(ctx *vm.Context, signer common.Address) error {
	if err := m.admin.Authorize(ctx.Caller()); err != nil {
		return err
	}
	if signer == (common.Address{}) {
		return fmt.Errorf("backend signer: %w", core.ErrInvalidAddress)
	}
	params, err := ctx.State.GetParams()
	if err != nil {
		return err
	}
	old := params.BackendSigner
	params.BackendSigner = signer
	if err := ctx.State.SetParams(params); err != nil {
		return err
	}
	ctx.Emit(events.EventBackendSignerUpdated, map[string]any{
		"old": old.Hex(),
		"new": signer.Hex(),
	})
	m.logger.Info("backend signer updated", zap.Stringer("signer", signer))
	return nil
}

// SetStakingPaused pauses or resumes new stakes.
func (m *Machine) SetStakingPaused(ctx *vm.Context, paused bool) error {
	if err := m.admin.Authorize(ctx.Caller()); err != nil {
		return err
	}
	return m.ledger.SetPaused(ctx, paused)
}

// SweepForfeitures moves what an ended game left in escrow, the unpaid pool
// of a game without winners and any retained remainder, to recipient.
func (m *Machine) SweepForfeitures(ctx *vm.Context, gameID uint64, recipient common.Address) (*uint256.Int, error) {
	if err := m.admin.Authorize(ctx.Caller()); err != nil {
		return nil, err
	}
	g, err := m.Game(ctx.State, gameID)
	if err != nil {
		return nil, err
	}
	if !g.Ended {
		return nil, fmt.Errorf("game %d: %w", gameID, core.ErrGameNotEnded)
	}
	amount, err := m.ledger.Sweep(ctx, gameID, recipient)
	if err != nil {
		return nil, err
	}
	m.logger.Info("forfeitures swept",
		zap.Uint64("game", gameID),
		zap.Stringer("recipient", recipient),
		zap.String("amount", amount.Dec()))
	return amount, nil
}
