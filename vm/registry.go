package vm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tolelom/triviachain/core"
)

// Handler applies one transaction type's payload to ctx. A returned error
// fails the transaction and reverts everything the handler wrote.
type Handler func(ctx *Context, payload json.RawMessage) error

// Registry routes transaction types to their handlers. The token, name and
// game modules each install their types at node startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.TxType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.TxType]Handler)}
}

// Register installs h for typ. Two modules claiming the same type is a
// wiring bug, so it panics.
func (r *Registry) Register(typ core.TxType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[typ]; dup {
		panic(fmt.Sprintf("vm: %s registered twice", typ))
	}
	r.handlers[typ] = h
}

// Has reports whether typ can be executed. The executor rejects unknown
// types before touching the sender's nonce.
func (r *Registry) Has(typ core.TxType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[typ]
	return ok
}

func (r *Registry) Execute(typ core.TxType, ctx *Context, payload json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("vm: no handler for %s", typ)
	}
	return h(ctx, payload)
}
