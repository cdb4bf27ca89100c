// Package node assembles a triviachain node from its configuration.
package node

import (
	"fmt"

	"github.com/tolelom/triviachain/attest"
	"github.com/tolelom/triviachain/config"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/game"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/indexer"
	"github.com/tolelom/triviachain/metrics"
	"github.com/tolelom/triviachain/nft"
	"github.com/tolelom/triviachain/reward"
	"github.com/tolelom/triviachain/rpc"
	"github.com/tolelom/triviachain/staking"
	"github.com/tolelom/triviachain/storage"
	"github.com/tolelom/triviachain/token"
	"github.com/tolelom/triviachain/vm"
	"github.com/tolelom/triviachain/vm/modules/economy"
	"github.com/tolelom/triviachain/vm/modules/names"
	"github.com/tolelom/triviachain/vm/modules/trivia"
	"go.uber.org/zap"
)

// Node is a fully wired, bootstrapped chain. The RPC server is built but
// not started.
type Node struct {
	Config   *config.Config
	State    *storage.StateDB
	Emitter  *events.Emitter
	Indexer  *indexer.Indexer
	Metrics  *metrics.Metrics
	Stream   *rpc.Stream
	Token    *token.Token
	Ledger   *staking.Ledger
	Names    *identity.Registry
	Machine  *game.Machine
	Executor *vm.Executor
	Server   *rpc.Server
}

// New wires every component on top of db and runs genesis on a fresh
// chain. clock may be nil for the system clock.
func New(cfg *config.Config, db storage.DB, clock vm.Clock, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	policy, err := identity.ParsePolicy(string(cfg.IdentityPolicy))
	if err != nil {
		return nil, err
	}

	n := &Node{Config: cfg}
	n.State = storage.NewStateDB(db)
	n.Emitter = events.NewEmitter(logger)
	n.Indexer = indexer.New(db, n.Emitter, logger)
	n.Metrics = metrics.New(n.Emitter)
	n.Stream = rpc.NewStream(n.Emitter, logger)

	n.Token = token.New(logger)
	n.Ledger = staking.NewLedger(n.Token, logger)
	n.Names = identity.NewRegistry(logger)
	minter := nft.NewMinter(logger)
	distributor := reward.NewDistributor(minter, n.Ledger, cfg.Platform, logger)
	admin := game.NewAdminCapability(cfg.Owner)
	n.Machine = game.New(game.Deps{
		Ledger:      n.Ledger,
		Token:       n.Token,
		Resolver:    n.Names,
		Verifier:    attest.SignatureVerifier{},
		Distributor: distributor,
		Admin:       admin,
		Policy:      policy,
		Escrow:      staking.EscrowAddress,
		Logger:      logger,
	})

	registry := vm.NewRegistry()
	economy.Register(registry, n.Token, admin)
	names.Register(registry, n.Names, admin)
	trivia.Register(registry, n.Machine)

	n.Executor, err = vm.NewExecutor(n.State, registry, vm.Options{
		ChainID:  cfg.ChainID,
		Receipts: storage.NewReceiptStore(db),
		Emitter:  n.Emitter,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	if err := n.Executor.Bootstrap(config.Genesis(cfg, n.Token, n.Names)); err != nil {
		return nil, err
	}

	handler := rpc.NewHandler(n.Executor, n.Names, n.Indexer, logger)
	addr := fmt.Sprintf(":%d", cfg.RPCPort)
	n.Server = rpc.NewServer(addr, handler, n.Stream, n.Metrics.Handler(), cfg.RPCAuthToken, logger)
	return n, nil
}
