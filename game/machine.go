// Package game is the trivia game state machine: game creation, staked
// joins, attested stage submissions, stage advancement and settlement.
package game

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tolelom/triviachain/attest"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/reward"
	"github.com/tolelom/triviachain/token"
	"github.com/tolelom/triviachain/vm"
	"go.uber.org/zap"
)

const (
	PlayerLimit     = 100
	PerfectScore    = 5
	AnswerCount     = 5
	FinalStage      = 3
	StageCleared    = 4
	MaxGameDuration = 24 * 60 * 60 // seconds
)

// StakeAmount is the stake escrowed on every join.
var StakeAmount = token.Tokens(10)

// Ledger is the stake ledger as seen by the state machine.
type Ledger interface {
	Stake(ctx *vm.Context, gameID uint64, player common.Address, amount *uint256.Int) error
	Refund(ctx *vm.Context, gameID uint64, player common.Address, stage uint8) (*uint256.Int, error)
	Sweep(ctx *vm.Context, gameID uint64, recipient common.Address) (*uint256.Int, error)
	SetPaused(ctx *vm.Context, paused bool) error
}

// Token exposes the balance checks done before escrow.
type Token interface {
	BalanceOf(st core.State, addr common.Address) (*uint256.Int, error)
	Allowance(st core.State, owner, spender common.Address) (*uint256.Int, error)
}

// Distributor settles an ended game.
type Distributor interface {
	Distribute(ctx *vm.Context, g *core.Game, winners [3]common.Address) (*reward.Result, error)
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Ledger      Ledger
	Token       Token
	Resolver    identity.Resolver
	Verifier    attest.Verifier
	Distributor Distributor
	Admin       AdminCapability
	Policy      identity.Policy
	// Escrow is the spender players approve for their stake.
	Escrow common.Address
	Logger *zap.Logger
}

// Machine runs every game. It is stateless; all records live in the
// transaction's core.State.
type Machine struct {
	ledger      Ledger
	token       Token
	resolver    identity.Resolver
	verifier    attest.Verifier
	distributor Distributor
	admin       AdminCapability
	policy      identity.Policy
	escrow      common.Address
	logger      *zap.Logger
}

// New builds a Machine from deps.
func New(deps Deps) *Machine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Policy == "" {
		deps.Policy = identity.ResolverOrSignedAlternate
	}
	return &Machine{
		ledger:      deps.Ledger,
		token:       deps.Token,
		resolver:    deps.Resolver,
		verifier:    deps.Verifier,
		distributor: deps.Distributor,
		admin:       deps.Admin,
		policy:      deps.Policy,
		escrow:      deps.Escrow,
		logger:      deps.Logger.Named("game"),
	}
}

// Admin returns the capability guarding owner operations.
func (m *Machine) Admin() AdminCapability { return m.admin }

// Game returns game id, or core.ErrGameDoesNotExist.
func (m *Machine) Game(st core.State, id uint64) (*core.Game, error) {
	g, err := st.GetGame(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("game %d: %w", id, core.ErrGameDoesNotExist)
	}
	return g, err
}

// Player returns the slot of addr in game id, or core.ErrNotFound.
func (m *Machine) Player(st core.State, id uint64, addr common.Address) (*core.PlayerEntry, error) {
	return st.GetPlayer(id, addr)
}

// IsPlayerInGame reports whether addr is still competing in game id.
func (m *Machine) IsPlayerInGame(st core.State, id uint64, addr common.Address) (bool, error) {
	p, err := st.GetPlayer(id, addr)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.InGame, nil
}

// openGame loads a game that still accepts joins and submissions.
func (m *Machine) openGame(ctx *vm.Context, id uint64) (*core.Game, error) {
	g, err := m.Game(ctx.State, id)
	if err != nil {
		return nil, err
	}
	if g.Ended {
		return nil, fmt.Errorf("game %d: %w", id, core.ErrGameAlreadyEnded)
	}
	if g.Expired(ctx.Now()) {
		return nil, fmt.Errorf("game %d: %w", id, core.ErrGameDurationExceeded)
	}
	return g, nil
}

func (m *Machine) backendSigner(st core.State) (common.Address, error) {
	params, err := st.GetParams()
	if err != nil {
		return common.Address{}, err
	}
	return params.BackendSigner, nil
}

// claimHandle decides whether caller may act under handle. It returns
// whether the handle resolved to the caller; an unresolved handle is allowed
// through only under ResolverOrSignedAlternate, leaving the backend
// signature as its sole authentication. A handle bound to someone else is
// never accepted.
func (m *Machine) claimHandle(st core.State, handle string, caller common.Address) (resolved bool, err error) {
	owns, err := identity.Owns(m.resolver, st, handle, caller)
	if err != nil {
		return false, err
	}
	if owns {
		return true, nil
	}
	_, err = m.resolver.Resolve(st, handle)
	switch {
	case err == nil:
		return false, errHandleTaken
	case errors.Is(err, core.ErrNotFound):
		if m.policy == identity.ResolverOrSignedAlternate {
			return false, nil
		}
		return false, errHandleUnresolved
	default:
		return false, err
	}
}

var (
	errHandleTaken      = errors.New("handle resolves to another address")
	errHandleUnresolved = errors.New("handle does not resolve")
)

func isClaimRejection(err error) bool {
	return errors.Is(err, errHandleTaken) || errors.Is(err, errHandleUnresolved)
}
