// Package economy binds the token transactions.
package economy

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/token"
	"github.com/tolelom/triviachain/vm"
)

// Authorizer guards owner-only transactions.
type Authorizer interface {
	Authorize(caller common.Address) error
}

// Register installs the token handlers into r.
func Register(r *vm.Registry, tok *token.Token, admin Authorizer) {
	h := &handlers{token: tok, admin: admin}
	r.Register(core.TxTokenMint, h.mint)
	r.Register(core.TxTokenTransfer, h.transfer)
	r.Register(core.TxTokenApprove, h.approve)
	r.Register(core.TxMintingPause, h.pause(true))
	r.Register(core.TxMintingUnpause, h.pause(false))
}

type handlers struct {
	token *token.Token
	admin Authorizer
}

func (h *handlers) mint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TokenMintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode token_mint payload: %w", err)
	}
	amount, err := token.ParseAmount(p.Amount)
	if err != nil {
		return err
	}
	return h.token.Mint(ctx, ctx.Caller(), amount)
}

func (h *handlers) transfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TokenTransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode token_transfer payload: %w", err)
	}
	amount, err := token.ParseAmount(p.Amount)
	if err != nil {
		return err
	}
	return h.token.Transfer(ctx, ctx.Caller(), p.To, amount)
}

func (h *handlers) approve(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TokenApprovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode token_approve payload: %w", err)
	}
	amount, err := token.ParseAmount(p.Amount)
	if err != nil {
		return err
	}
	return h.token.Approve(ctx, ctx.Caller(), p.Spender, amount)
}

func (h *handlers) pause(paused bool) vm.Handler {
	return func(ctx *vm.Context, _ json.RawMessage) error {
		if err := h.admin.Authorize(ctx.Caller()); err != nil {
			return err
		}
		return h.token.SetMintingPaused(ctx, paused)
	}
}
