package game

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/attest"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// SubmitAnswers records the caller's backend-graded result for stage. A
// perfect score moves the player to the next stage; anything else
// eliminates it with the refund tier of the stage it failed.
func (m *Machine) SubmitAnswers(ctx *vm.Context, gameID uint64, stage uint8, answerHashes []common.Hash, score uint8, sig []byte) error {
	caller := ctx.Caller()
	g, err := m.openGame(ctx, gameID)
	if err != nil {
		return err
	}
	if stage < 1 || stage > FinalStage {
		return fmt.Errorf("stage %d: %w", stage, core.ErrInvalidStage)
	}
	if len(answerHashes) != AnswerCount {
		return fmt.Errorf("got %d answers: %w", len(answerHashes), core.ErrInvalidAnswerCount)
	}
	if score > PerfectScore {
		return fmt.Errorf("score %d: %w", score, core.ErrInvalidScore)
	}
	if g.Stage != stage {
		return fmt.Errorf("game %d at stage %d, got %d: %w", gameID, g.Stage, stage, core.ErrStageMismatch)
	}

	entry, err := ctx.State.GetPlayer(gameID, caller)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("game %d: %w", gameID, core.ErrNotInGame)
	}
	if err != nil {
		return err
	}
	if !entry.InGame {
		return fmt.Errorf("game %d: %w", gameID, core.ErrNotInGame)
	}
	if entry.Submitted[stage] {
		return fmt.Errorf("stage %d: %w", stage, core.ErrAlreadySubmitted)
	}
	if entry.CurrentStage != stage {
		return fmt.Errorf("player at stage %d, got %d: %w", entry.CurrentStage, stage, core.ErrStageMismatch)
	}

	signer, err := m.backendSigner(ctx.State)
	if err != nil {
		return err
	}
	digest, err := attest.AnswersDigest(gameID, caller, stage, score, answerHashes)
	if err != nil {
		return err
	}
	if !m.verifier.Verify(signer, digest, sig) {
		return fmt.Errorf("answers for stage %d: %w", stage, core.ErrInvalidSignature)
	}

	entry.Submitted[stage] = true
	entry.Score = score

	if score == PerfectScore {
		return m.completeStage(ctx, g, entry, stage)
	}
	return m.eliminate(ctx, g, entry, stage)
}

func (m *Machine) completeStage(ctx *vm.Context, g *core.Game, entry *core.PlayerEntry, stage uint8) error {
	entry.CurrentStage++
	var marker int64
	if stage == FinalStage {
		entry.CompletionTime = ctx.Now()
		marker = entry.CompletionTime
		g.PerfectScorers = append(g.PerfectScorers, entry.Player)
		if err := ctx.State.SetGame(g); err != nil {
			return err
		}
	}
	if err := ctx.State.SetPlayer(entry); err != nil {
		return err
	}
	ctx.Emit(events.EventStageCompleted, map[string]any{
		"game_id": g.ID,
		"player":  entry.Player.Hex(),
		"stage":   entry.CurrentStage,
		"marker":  marker,
	})
	m.logger.Debug("stage completed",
		zap.Uint64("game", g.ID),
		zap.Stringer("player", entry.Player),
		zap.Uint8("stage", stage))
	return nil
}

func (m *Machine) eliminate(ctx *vm.Context, g *core.Game, entry *core.PlayerEntry, stage uint8) error {
	entry.InGame = false
	if err := ctx.State.SetPlayer(entry); err != nil {
		return err
	}
	g.PlayerCount--
	if err := ctx.State.SetGame(g); err != nil {
		return err
	}
	refunded, err := m.ledger.Refund(ctx, g.ID, entry.Player, stage)
	if err != nil {
		return err
	}
	ctx.Emit(events.EventPlayerEliminated, map[string]any{
		"game_id":  g.ID,
		"player":   entry.Player.Hex(),
		"stage":    stage,
		"score":    entry.Score,
		"refunded": refunded.Dec(),
	})
	m.logger.Debug("player eliminated",
		zap.Uint64("game", g.ID),
		zap.Stringer("player", entry.Player),
		zap.Uint8("stage", stage),
		zap.Uint8("score", entry.Score))
	return nil
}
