package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
)

// Context is passed to every Handler and provides access to the chain state,
// the triggering transaction and the chain clock. Events emitted through the
// context are held back until the transaction commits.
type Context struct {
	State  core.State
	Tx     *core.Transaction
	Height uint64
	Time   int64

	caller common.Address
	events []events.Event
	result any
}

// NewContext builds a context for caller at chain time now. The executor
// uses it for every transaction; tests use it to drive packages directly.
func NewContext(st core.State, caller common.Address, now int64) *Context {
	return &Context{State: st, Time: now, caller: caller}
}

// Caller returns the authenticated sender of the transaction.
func (c *Context) Caller() common.Address { return c.caller }

// Now returns the chain time of the transaction in unix seconds.
func (c *Context) Now() int64 { return c.Time }

// Emit buffers an event for publication after commit.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	c.events = append(c.events, events.New(typ, data))
}

// Events returns the buffered events in emission order.
func (c *Context) Events() []events.Event { return c.events }

// SetResult records a value to be returned in the transaction receipt.
func (c *Context) SetResult(v any) { c.result = v }

// Result returns the value recorded by SetResult.
func (c *Context) Result() any { return c.result }

// discard drops buffered events and the result of a reverted transaction.
func (c *Context) discard() {
	c.events = nil
	c.result = nil
}
