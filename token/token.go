// Package token is the fungible stake token: balances, allowances and a
// capped, pausable self-mint faucet.
package token

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

var (
	// MaxSupply caps the total amount ever minted.
	MaxSupply = Tokens(5_000_000)
	// MaxMintPerWallet caps the lifetime self-mint of one account.
	MaxMintPerWallet = Tokens(30)
	// MinBalanceForMint is the balance at or above which self-mint is refused.
	MinBalanceForMint = Tokens(10)
)

// Token implements the token ledger on top of core.State.
type Token struct {
	logger *zap.Logger
}

// New returns a Token.
func New(logger *zap.Logger) *Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Token{logger: logger.Named("token")}
}

// BalanceOf returns the balance of addr.
func (t *Token) BalanceOf(st core.State, addr common.Address) (*uint256.Int, error) {
	acc, err := st.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance.Clone(), nil
}

// Allowance returns what spender may still pull from owner.
func (t *Token) Allowance(st core.State, owner, spender common.Address) (*uint256.Int, error) {
	a, err := st.GetAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return a.Amount.Clone(), nil
}

// Approve sets spender's allowance over owner's balance to amount.
func (t *Token) Approve(ctx *vm.Context, owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return fmt.Errorf("approve: %w", core.ErrInvalidAddress)
	}
	a := &core.Allowance{Owner: owner, Spender: spender}
	a.Amount.Set(amount)
	if err := ctx.State.SetAllowance(a); err != nil {
		return err
	}
	ctx.Emit(events.EventTokenApproval, map[string]any{
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"amount":  amount.Dec(),
	})
	return nil
}

// Transfer moves amount from one account to another.
func (t *Token) Transfer(ctx *vm.Context, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("transfer: %w", core.ErrInvalidAddress)
	}
	if amount.IsZero() {
		return fmt.Errorf("transfer: %w", core.ErrInvalidAmount)
	}
	sender, err := ctx.State.GetAccount(from)
	if err != nil {
		return err
	}
	if sender.Balance.Lt(amount) {
		return fmt.Errorf("transfer: have %s need %s: %w", sender.Balance.Dec(), amount.Dec(), core.ErrInsufficientBalance)
	}
	sender.Balance.Sub(&sender.Balance, amount)
	if err := ctx.State.SetAccount(sender); err != nil {
		return err
	}

	recipient, err := ctx.State.GetAccount(to)
	if err != nil {
		return err
	}
	recipient.Balance.Add(&recipient.Balance, amount)
	if err := ctx.State.SetAccount(recipient); err != nil {
		return err
	}

	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	})
	return nil
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming spender's allowance.
func (t *Token) TransferFrom(ctx *vm.Context, spender, owner, recipient common.Address, amount *uint256.Int) error {
	a, err := ctx.State.GetAllowance(owner, spender)
	if err != nil {
		return err
	}
	if a.Amount.Lt(amount) {
		return fmt.Errorf("transferFrom: have %s need %s: %w", a.Amount.Dec(), amount.Dec(), core.ErrInsufficientAllowance)
	}
	if err := t.Transfer(ctx, owner, recipient, amount); err != nil {
		return err
	}
	a.Owner, a.Spender = owner, spender
	a.Amount.Sub(&a.Amount, amount)
	return ctx.State.SetAllowance(a)
}

// Mint is the self-service faucet: the caller mints amount to itself while
// minting is open, its balance is below MinBalanceForMint, and both the
// per-wallet and total supply caps hold.
func (t *Token) Mint(ctx *vm.Context, to common.Address, amount *uint256.Int) error {
	params, err := ctx.State.GetParams()
	if err != nil {
		return err
	}
	if params.MintingPaused {
		return fmt.Errorf("mint: %w", core.ErrMintingPaused)
	}
	if amount.IsZero() {
		return fmt.Errorf("mint: %w", core.ErrInvalidAmount)
	}
	acc, err := ctx.State.GetAccount(to)
	if err != nil {
		return err
	}
	if !acc.Balance.Lt(MinBalanceForMint) {
		return fmt.Errorf("mint: %w", core.ErrBalanceTooHigh)
	}
	minted, overflow := new(uint256.Int).AddOverflow(&acc.Minted, amount)
	if overflow || minted.Gt(MaxMintPerWallet) {
		return fmt.Errorf("mint: %w", core.ErrExceedsMaxMintPerWallet)
	}
	if err := t.issue(ctx, params, acc, amount); err != nil {
		return err
	}
	acc.Minted.Set(minted)
	return ctx.State.SetAccount(acc)
}

// Credit issues amount to addr outside the faucet rules. It is used for the
// genesis allocation and still honours MaxSupply.
func (t *Token) Credit(ctx *vm.Context, addr common.Address, amount *uint256.Int) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("credit: %w", core.ErrInvalidAddress)
	}
	if amount.IsZero() {
		return fmt.Errorf("credit: %w", core.ErrInvalidAmount)
	}
	params, err := ctx.State.GetParams()
	if err != nil {
		return err
	}
	acc, err := ctx.State.GetAccount(addr)
	if err != nil {
		return err
	}
	if err := t.issue(ctx, params, acc, amount); err != nil {
		return err
	}
	return ctx.State.SetAccount(acc)
}

// issue adds amount to acc and the supply counter. The caller stores acc.
func (t *Token) issue(ctx *vm.Context, params *core.Params, acc *core.Account, amount *uint256.Int) error {
	total, overflow := new(uint256.Int).AddOverflow(&params.TotalMinted, amount)
	if overflow || total.Gt(MaxSupply) {
		return fmt.Errorf("mint: %w", core.ErrExceedsMaxSupply)
	}
	params.TotalMinted.Set(total)
	if err := ctx.State.SetParams(params); err != nil {
		return err
	}
	acc.Balance.Add(&acc.Balance, amount)
	ctx.Emit(events.EventTokenMint, map[string]any{
		"to":     acc.Address.Hex(),
		"amount": amount.Dec(),
	})
	t.logger.Debug("minted", zap.Stringer("to", acc.Address), zap.String("amount", amount.Dec()))
	return nil
}

// SetMintingPaused toggles the faucet. Authorization is the caller's job.
func (t *Token) SetMintingPaused(ctx *vm.Context, paused bool) error {
	params, err := ctx.State.GetParams()
	if err != nil {
		return err
	}
	params.MintingPaused = paused
	if err := ctx.State.SetParams(params); err != nil {
		return err
	}
	typ := events.EventMintingUnpaused
	if paused {
		typ = events.EventMintingPaused
	}
	ctx.Emit(typ, map[string]any{"by": ctx.Caller().Hex()})
	return nil
}
