// Package identity maps human-readable handles to addresses.
package identity

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/crypto"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

// MaxHandleLength bounds a handle in bytes.
const MaxHandleLength = 64

// Policy selects which identity claims are accepted for creating and joining.
type Policy string

const (
	// ResolverOnly accepts only handles that resolve to the caller.
	ResolverOnly Policy = "resolver_only"
	// ResolverOrSignedAlternate additionally accepts an unresolved handle
	// when the backend signature covers it.
	ResolverOrSignedAlternate Policy = "resolver_or_signed_alternate"
)

// ParsePolicy validates s as a Policy. The empty string selects the default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return ResolverOrSignedAlternate, nil
	case ResolverOnly, ResolverOrSignedAlternate:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown identity policy %q", s)
}

// Node is the resolver key of handle.
func Node(handle string) common.Hash {
	return crypto.Keccak([]byte(handle))
}

// ValidateHandle rejects empty and oversized handles.
func ValidateHandle(handle string) error {
	if handle == "" {
		return fmt.Errorf("empty handle: %w", core.ErrInvalidIdentifier)
	}
	if len(handle) > MaxHandleLength {
		return fmt.Errorf("handle longer than %d bytes: %w", MaxHandleLength, core.ErrInvalidStringLength)
	}
	return nil
}

// Resolver resolves handles to addresses.
type Resolver interface {
	Resolve(st core.State, handle string) (common.Address, error)
}

// Owns reports whether handle resolves to addr.
func Owns(r Resolver, st core.State, handle string, addr common.Address) (bool, error) {
	got, err := r.Resolve(st, handle)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == addr, nil
}

// Registry is the on-chain name registry.
type Registry struct {
	logger *zap.Logger
}

// NewRegistry returns a Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger.Named("identity")}
}

// Resolve returns the address bound to handle, or core.ErrNotFound.
func (r *Registry) Resolve(st core.State, handle string) (common.Address, error) {
	rec, err := st.GetName(Node(handle))
	if err != nil {
		return common.Address{}, err
	}
	return rec.Address, nil
}

// Register binds handle to addr, replacing any previous binding.
// Authorization is the caller's job.
func (r *Registry) Register(ctx *vm.Context, handle string, addr common.Address) error {
	if err := ValidateHandle(handle); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("register %q: %w", handle, core.ErrInvalidAddress)
	}
	rec := &core.NameRecord{Node: Node(handle), Handle: handle, Address: addr}
	if err := ctx.State.SetName(rec); err != nil {
		return err
	}
	ctx.Emit(events.EventNameRegistered, map[string]any{
		"node":    rec.Node.Hex(),
		"handle":  handle,
		"address": addr.Hex(),
	})
	r.logger.Debug("registered", zap.String("handle", handle), zap.Stringer("address", addr))
	return nil
}
