package game

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/attest"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// CreateGame opens a game for the caller under handle and returns its id.
// sig is only consulted when handle does not resolve to the caller.
func (m *Machine) CreateGame(ctx *vm.Context, handle string, questionHashes [3]common.Hash, duration int64, sig []byte) (uint64, error) {
	caller := ctx.Caller()
	if err := identity.ValidateHandle(handle); err != nil {
		return 0, err
	}

	params, err := ctx.State.GetParams()
	if err != nil {
		return 0, err
	}
	nextID := params.GameCounter + 1

	resolved, err := m.claimHandle(ctx.State, handle, caller)
	if isClaimRejection(err) {
		return 0, fmt.Errorf("create as %q: %v: %w", handle, err, core.ErrUnauthorizedCaller)
	}
	if err != nil {
		return 0, err
	}
	if !resolved {
		digest, err := attest.CreateDigest(caller, handle, nextID)
		if err != nil {
			return 0, err
		}
		if len(sig) == 0 || !m.verifier.Verify(params.BackendSigner, digest, sig) {
			return 0, fmt.Errorf("create as %q: unattested handle: %w", handle, core.ErrUnauthorizedCaller)
		}
	}

	for i, h := range questionHashes {
		if h == (common.Hash{}) {
			return 0, fmt.Errorf("question %d: %w", i+1, core.ErrInvalidQuestionHash)
		}
		for j := 0; j < i; j++ {
			if questionHashes[j] == h {
				return 0, fmt.Errorf("questions %d and %d: %w", j+1, i+1, core.ErrDuplicateQuestionHash)
			}
		}
	}
	if duration <= 0 || duration > MaxGameDuration {
		return 0, fmt.Errorf("duration %ds: %w", duration, core.ErrInvalidGameDuration)
	}

	params.GameCounter = nextID
	if err := ctx.State.SetParams(params); err != nil {
		return 0, err
	}
	g := &core.Game{
		ID:             nextID,
		Creator:        caller,
		CreatorHandle:  handle,
		Stage:          1,
		StartTime:      ctx.Now(),
		Duration:       duration,
		QuestionHashes: questionHashes,
	}
	if err := ctx.State.SetGame(g); err != nil {
		return 0, err
	}

	ctx.Emit(events.EventGameCreated, map[string]any{
		"game_id": g.ID,
		"creator": caller.Hex(),
		"handle":  handle,
	})
	m.logger.Debug("game created",
		zap.Uint64("game", g.ID),
		zap.Stringer("creator", caller),
		zap.Int64("duration", duration))
	return g.ID, nil
}

// JoinGame stakes StakeAmount from the caller and enters it into gameID.
// A previously eliminated player reuses its slot with every field reset.
func (m *Machine) JoinGame(ctx *vm.Context, gameID uint64, handle string, sig []byte) error {
	caller := ctx.Caller()
	g, err := m.openGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.PlayerCount >= PlayerLimit {
		return fmt.Errorf("game %d: %w", gameID, core.ErrPlayerLimitReached)
	}
	entry, err := ctx.State.GetPlayer(gameID, caller)
	switch {
	case errors.Is(err, core.ErrNotFound):
		entry = nil
	case err != nil:
		return err
	case entry.InGame:
		return fmt.Errorf("game %d: %w", gameID, core.ErrAlreadyParticipated)
	}

	if err := identity.ValidateHandle(handle); err != nil {
		return fmt.Errorf("join as %q: %v: %w", handle, err, core.ErrInvalidIdentifier)
	}
	if _, err := m.claimHandle(ctx.State, handle, caller); err != nil {
		if isClaimRejection(err) {
			return fmt.Errorf("join as %q: %v: %w", handle, err, core.ErrInvalidIdentifier)
		}
		return err
	}

	signer, err := m.backendSigner(ctx.State)
	if err != nil {
		return err
	}
	digest, err := attest.JoinDigest(caller, handle, gameID)
	if err != nil {
		return err
	}
	if !m.verifier.Verify(signer, digest, sig) {
		return fmt.Errorf("join game %d: %w", gameID, core.ErrInvalidSignature)
	}

	balance, err := m.token.BalanceOf(ctx.State, caller)
	if err != nil {
		return err
	}
	if balance.Lt(StakeAmount) {
		return fmt.Errorf("join game %d: %w", gameID, core.ErrInsufficientBalance)
	}
	allowance, err := m.token.Allowance(ctx.State, caller, m.escrow)
	if err != nil {
		return err
	}
	if allowance.Lt(StakeAmount) {
		return fmt.Errorf("join game %d: %w", gameID, core.ErrInsufficientAllowance)
	}

	if err := m.ledger.Stake(ctx, gameID, caller, StakeAmount); err != nil {
		return err
	}

	rejoin := entry != nil
	entry = &core.PlayerEntry{
		GameID:       gameID,
		Player:       caller,
		Handle:       handle,
		CurrentStage: 1,
		InGame:       true,
	}
	if err := ctx.State.SetPlayer(entry); err != nil {
		return err
	}
	g.PlayerCount++
	if err := ctx.State.SetGame(g); err != nil {
		return err
	}

	ctx.Emit(events.EventPlayerJoined, map[string]any{
		"game_id": gameID,
		"player":  caller.Hex(),
		"handle":  handle,
	})
	m.logger.Debug("player joined",
		zap.Uint64("game", gameID),
		zap.Stringer("player", caller),
		zap.Bool("rejoin", rejoin))
	return nil
}
