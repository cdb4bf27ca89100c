package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tolelom/triviachain/crypto"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/token"
	"github.com/tolelom/triviachain/vm"
)

type allocation struct {
	addr   common.Address
	amount *uint256.Int
}

type binding struct {
	handle string
	addr   common.Address
}

// allocations parses Alloc in address order so genesis is deterministic.
func (g GenesisConfig) allocations() ([]allocation, error) {
	out := make([]allocation, 0, len(g.Alloc))
	for _, key := range slices.Sorted(maps.Keys(g.Alloc)) {
		addr, err := crypto.ParseAddress(key)
		if err != nil {
			return nil, fmt.Errorf("genesis alloc: %w", err)
		}
		amount, err := token.ParseTokens(g.Alloc[key])
		if err != nil {
			return nil, fmt.Errorf("genesis alloc %s: %w", key, err)
		}
		out = append(out, allocation{addr: addr, amount: amount})
	}
	return out, nil
}

func (g GenesisConfig) names() ([]binding, error) {
	out := make([]binding, 0, len(g.Names))
	for _, handle := range slices.Sorted(maps.Keys(g.Names)) {
		if err := identity.ValidateHandle(handle); err != nil {
			return nil, fmt.Errorf("genesis name %q: %w", handle, err)
		}
		addr, err := crypto.ParseAddress(g.Names[handle])
		if err != nil {
			return nil, fmt.Errorf("genesis name %q: %w", handle, err)
		}
		out = append(out, binding{handle: handle, addr: addr})
	}
	return out, nil
}

// Genesis returns the bootstrap function for vm.Executor.Bootstrap. It
// credits the allocations, registers the names and installs the backend
// signer.
func Genesis(cfg *Config, tok *token.Token, names *identity.Registry) func(ctx *vm.Context) error {
	return func(ctx *vm.Context) error {
		allocs, err := cfg.Genesis.allocations()
		if err != nil {
			return err
		}
		bindings, err := cfg.Genesis.names()
		if err != nil {
			return err
		}
		for _, a := range allocs {
			if err := tok.Credit(ctx, a.addr, a.amount); err != nil {
				return fmt.Errorf("credit %s: %w", a.addr, err)
			}
		}
		for _, b := range bindings {
			if err := names.Register(ctx, b.handle, b.addr); err != nil {
				return err
			}
		}
		params, err := ctx.State.GetParams()
		if err != nil {
			return err
		}
		params.BackendSigner = cfg.BackendSigner
		return ctx.State.SetParams(params)
	}
}
