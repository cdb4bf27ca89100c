package game

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/core"
)

// AdminCapability is the owner key's privilege over stage advancement,
// refunds, game ending and chain parameters.
type AdminCapability struct {
	owner common.Address
}

// NewAdminCapability grants owner the admin privilege.
func NewAdminCapability(owner common.Address) AdminCapability {
	return AdminCapability{owner: owner}
}

// Owner returns the privileged address.
func (a AdminCapability) Owner() common.Address { return a.owner }

// Authorize fails with core.ErrUnauthorized unless caller is the owner.
func (a AdminCapability) Authorize(caller common.Address) error {
	if a.owner == (common.Address{}) || caller != a.owner {
		return fmt.Errorf("%s: %w", caller, core.ErrUnauthorized)
	}
	return nil
}
