// Package trivia binds the game, signer and staking administration
// transactions to the state machine.
package trivia

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/triviachain/attest"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/game"
	"github.com/tolelom/triviachain/vm"
)

// Register installs the game handlers into r.
func Register(r *vm.Registry, m *game.Machine) {
	h := &handlers{m: m}
	r.Register(core.TxGameCreate, h.create)
	r.Register(core.TxGameJoin, h.join)
	r.Register(core.TxGameSubmit, h.submit)
	r.Register(core.TxGameAdvance, h.advance)
	r.Register(core.TxGameRefund, h.refund)
	r.Register(core.TxGameEnd, h.end(false))
	r.Register(core.TxGameAutoEnd, h.end(true))
	r.Register(core.TxSignerSet, h.setSigner)
	r.Register(core.TxStakingPause, h.pause(true))
	r.Register(core.TxStakingUnpause, h.pause(false))
	r.Register(core.TxStakingSweep, h.sweep)
}

type handlers struct {
	m *game.Machine
}

func decode(typ core.TxType, payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", typ, err)
	}
	return nil
}

func (h *handlers) create(ctx *vm.Context, payload json.RawMessage) error {
	var p core.GameCreatePayload
	if err := decode(core.TxGameCreate, payload, &p); err != nil {
		return err
	}
	var sig []byte
	if p.Signature != "" {
		var err error
		if sig, err = attest.DecodeSignature(p.Signature); err != nil {
			return err
		}
	}
	id, err := h.m.CreateGame(ctx, p.Handle, p.QuestionHashes, p.Duration, sig)
	if err != nil {
		return err
	}
	ctx.SetResult(map[string]any{"game_id": id})
	return nil
}

func (h *handlers) join(ctx *vm.Context, payload json.RawMessage) error {
	var p core.GameJoinPayload
	if err := decode(core.TxGameJoin, payload, &p); err != nil {
		return err
	}
	sig, err := attest.DecodeSignature(p.Signature)
	if err != nil {
		return err
	}
	return h.m.JoinGame(ctx, p.GameID, p.Handle, sig)
}

func (h *handlers) submit(ctx *vm.Context, payload json.RawMessage) error {
	var p core.GameSubmitPayload
	if err := decode(core.TxGameSubmit, payload, &p); err != nil {
		return err
	}
	sig, err := attest.DecodeSignature(p.Signature)
	if err != nil {
		return err
	}
	return h.m.SubmitAnswers(ctx, p.GameID, p.Stage, p.AnswerHashes, p.Score, sig)
}

func (h *handlers) advance(ctx *vm.Context, payload json.RawMessage) error {
	var p core.GameRefPayload
	if err := decode(core.TxGameAdvance, payload, &p); err != nil {
		return err
	}
	return h.m.AdvanceStage(ctx, p.GameID)
}

func (h *handlers) refund(ctx *vm.Context, payload json.RawMessage) error {
	var p core.GameRefundPayload
	if err := decode(core.TxGameRefund, payload, &p); err != nil {
		return err
	}
	return h.m.RefundPlayer(ctx, p.GameID, p.Player)
}

func (h *handlers) end(auto bool) vm.Handler {
	return func(ctx *vm.Context, payload json.RawMessage) error {
		var p core.GameRefPayload
		if err := decode(core.TxGameEnd, payload, &p); err != nil {
			return err
		}
		end := h.m.EndGame
		if auto {
			end = h.m.AutoEndGame
		}
		res, err := end(ctx, p.GameID)
		if err != nil {
			return err
		}
		ctx.SetResult(res)
		return nil
	}
}

func (h *handlers) setSigner(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SignerSetPayload
	if err := decode(core.TxSignerSet, payload, &p); err != nil {
		return err
	}
	return h.m.SetBackendSigner(ctx, p.Signer)
}

func (h *handlers) pause(paused bool) vm.Handler {
	return func(ctx *vm.Context, _ json.RawMessage) error {
		return h.m.SetStakingPaused(ctx, paused)
	}
}

func (h *handlers) sweep(ctx *vm.Context, payload json.RawMessage) error {
	var p core.StakingSweepPayload
	if err := decode(core.TxStakingSweep, payload, &p); err != nil {
		return err
	}
	amount, err := h.m.SweepForfeitures(ctx, p.GameID, p.Recipient)
	if err != nil {
		return err
	}
	ctx.SetResult(map[string]any{"amount": amount.Dec()})
	return nil
}
