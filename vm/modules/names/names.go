// Package names binds the name registration transaction.
package names

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/vm"
)

// Authorizer guards owner-only transactions.
type Authorizer interface {
	Authorize(caller common.Address) error
}

// Register installs the name handlers into r.
func Register(r *vm.Registry, reg *identity.Registry, admin Authorizer) {
	r.Register(core.TxNameRegister, func(ctx *vm.Context, payload json.RawMessage) error {
		if err := admin.Authorize(ctx.Caller()); err != nil {
			return err
		}
		var p core.NameRegisterPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode name_register payload: %w", err)
		}
		return reg.Register(ctx, p.Handle, p.Address)
	})
}
