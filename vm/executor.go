package vm

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/storage"
	"go.uber.org/zap"
)

// GenesisTxID is the receipt id of the bootstrap transaction.
const GenesisTxID = "genesis"

// Clock supplies wall-clock time in unix seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the host clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// Options configures an Executor.
type Options struct {
	ChainID  string
	Receipts *storage.ReceiptStore
	Emitter  *events.Emitter
	Clock    Clock
	Logger   *zap.Logger
}

// Executor applies transactions one at a time in arrival order. Each
// transaction is stamped with the next height and a chain time that never
// decreases, runs inside a state snapshot, and is committed or reverted as a
// whole. Events are published only after the commit.
type Executor struct {
	mu       sync.Mutex
	chainID  string
	state    core.State
	registry *Registry
	receipts *storage.ReceiptStore
	emitter  *events.Emitter
	clock    Clock
	logger   *zap.Logger
	head     storage.Head
}

// NewExecutor creates an Executor and restores the sequencer head from the
// receipt store.
func NewExecutor(state core.State, registry *Registry, opts Options) (*Executor, error) {
	if opts.Receipts == nil {
		return nil, errors.New("vm: receipt store required")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	head, err := opts.Receipts.Head()
	if err != nil {
		return nil, fmt.Errorf("load head: %w", err)
	}
	return &Executor{
		chainID:  opts.ChainID,
		state:    state,
		registry: registry,
		receipts: opts.Receipts,
		emitter:  opts.Emitter,
		clock:    opts.Clock,
		logger:   opts.Logger.Named("executor"),
		head:     head,
	}, nil
}

// Head returns the height and chain time of the last executed transaction.
func (e *Executor) Head() storage.Head {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.head
}

// View runs fn against the committed state between transactions.
func (e *Executor) View(fn func(st core.State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// ChainID returns the chain identifier transactions must carry.
func (e *Executor) ChainID() string { return e.chainID }

// Bootstrap runs fn once on a fresh chain as the genesis transaction. It is a
// no-op when the chain already has a head.
func (e *Executor) Bootstrap(fn func(ctx *Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.head.Height > 0 {
		return nil
	}
	ctx := e.nextContext(nil)
	if err := fn(ctx); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if err := e.state.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	rcpt := &core.Receipt{TxID: GenesisTxID, Height: ctx.Height, Time: ctx.Time, OK: true}
	if err := e.seal(ctx, rcpt); err != nil {
		return err
	}
	e.publish(ctx)
	return nil
}

// Submit validates and executes tx. A transaction that fails envelope checks
// (chain id, signature, nonce) is rejected with an error and leaves no trace.
// A transaction whose handler fails consumes its nonce and produces a failed
// receipt; all of its other effects are reverted.
func (e *Executor) Submit(tx *core.Transaction) (*core.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tx.ChainID != e.chainID {
		return nil, fmt.Errorf("chain id mismatch: got %q want %q", tx.ChainID, e.chainID)
	}
	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	if tx.ID != tx.Hash() {
		return nil, fmt.Errorf("tx id %s does not match hash", tx.ID)
	}
	if !e.registry.Has(tx.Type) {
		return nil, fmt.Errorf("unknown tx type %q", tx.Type)
	}
	base, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	abort := func(err error) (*core.Receipt, error) {
		if revertErr := e.state.RevertToSnapshot(base); revertErr != nil {
			return nil, fmt.Errorf("%w (revert: %v)", err, revertErr)
		}
		return nil, err
	}
	if err := e.bumpNonce(tx); err != nil {
		return abort(err)
	}

	ctx := e.nextContext(tx)
	snapID, err := e.state.Snapshot()
	if err != nil {
		return abort(fmt.Errorf("snapshot: %w", err))
	}

	rcpt := &core.Receipt{TxID: tx.ID, Height: ctx.Height, Time: ctx.Time, OK: true}
	if err := e.registry.Execute(tx.Type, ctx, tx.Payload); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return abort(fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr))
		}
		ctx.discard()
		rcpt.OK = false
		rcpt.Error = err.Error()
		e.logger.Debug("tx rejected",
			zap.String("tx", tx.ID),
			zap.String("type", string(tx.Type)),
			zap.Error(err))
	} else {
		rcpt.Result = ctx.Result()
	}

	if err := e.state.Commit(); err != nil {
		return abort(fmt.Errorf("commit: %w", err))
	}
	if err := e.seal(ctx, rcpt); err != nil {
		return nil, err
	}

	ctx.Emit(events.EventTxExecuted, map[string]any{
		"type": string(tx.Type),
		"from": tx.From.Hex(),
		"ok":   rcpt.OK,
	})
	e.publish(ctx)
	return rcpt, nil
}

// Receipt returns the stored receipt for txID.
func (e *Executor) Receipt(txID string) (*core.Receipt, error) {
	return e.receipts.GetReceipt(txID)
}

// nextContext stamps the next height and a chain time that is never earlier
// than the previous transaction's, whatever the wall clock says.
func (e *Executor) nextContext(tx *core.Transaction) *Context {
	now := e.clock.Now()
	if now < e.head.Time {
		now = e.head.Time
	}
	ctx := &Context{State: e.state, Tx: tx, Height: e.head.Height + 1, Time: now}
	if tx != nil {
		ctx.caller = tx.From
	}
	return ctx
}

func (e *Executor) bumpNonce(tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Nonce++
	return e.state.SetAccount(acc)
}

func (e *Executor) seal(ctx *Context, rcpt *core.Receipt) error {
	head := storage.Head{Height: ctx.Height, Time: ctx.Time}
	if err := e.receipts.PutReceipt(rcpt); err != nil {
		e.logger.Error("store receipt", zap.String("tx", rcpt.TxID), zap.Error(err))
		return fmt.Errorf("store receipt: %w", err)
	}
	if err := e.receipts.SetHead(head); err != nil {
		e.logger.Error("store head", zap.Uint64("height", head.Height), zap.Error(err))
		return fmt.Errorf("store head: %w", err)
	}
	e.head = head
	return nil
}

func (e *Executor) publish(ctx *Context) {
	if e.emitter == nil {
		return
	}
	txID := GenesisTxID
	if ctx.Tx != nil {
		txID = ctx.Tx.ID
	}
	for _, ev := range ctx.Events() {
		ev.TxID = txID
		ev.Height = ctx.Height
		ev.Time = ctx.Time
		e.emitter.Emit(ev)
	}
}
