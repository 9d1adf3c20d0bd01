package contract

import (
	"context"

	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

/*
Call is the execution context of a single contract method: the builder of
the transaction being assembled and the method's own account update.
*/
type Call struct {
	b        *transaction.Builder
	contract Contract
	method   string
	self     transaction.NodeID
}

func (c *Call) Context() context.Context {
	return c.b.Context()
}

func (c *Call) Builder() *transaction.Builder {
	return c.b
}

func (c *Call) Method() string {
	return c.method
}

// Node returns the id of the method's own update.
func (c *Call) Node() transaction.NodeID {
	return c.self
}

// Self returns the method's own update.
func (c *Call) Self() *types.AccountUpdate {
	return c.b.Update(c.self)
}

// Account returns the state of the contract's own account as seen by this method.
func (c *Call) Account() (*types.Account, error) {
	return c.b.EffectiveAccount(AccountID(c.contract))
}

// RequestUpdate appends an update of account id as the last child of the method's own update.
func (c *Call) RequestUpdate(id types.AccountID) (transaction.NodeID, *types.AccountUpdate, error) {
	return c.b.RequestUpdate(c.self, id)
}

/*
Authorize resolves the callback (executes its method exactly once), checks
the resulting subtree against layout and splices it under the method's own
update. The resolved update is returned for the caller to assert further
constraints on (and possibly fail the transaction with Fail).
*/
func (c *Call) Authorize(cb *Callback, layout transaction.Layout) (*types.AccountUpdate, error) {
	node, err := cb.resolve(c.b)
	if err != nil {
		return nil, err
	}
	if err := c.b.Authorize(node, c.self, layout); err != nil {
		return nil, err
	}
	return c.b.Update(node), nil
}

// AuthorizeUpdate splices an already built detached update under the method's own update.
func (c *Call) AuthorizeUpdate(node transaction.NodeID, layout transaction.Layout) (*types.AccountUpdate, error) {
	if err := c.b.Authorize(node, c.self, layout); err != nil {
		return nil, err
	}
	return c.b.Update(node), nil
}

// Fail aborts the transaction with err, see transaction.Builder.Fail.
func (c *Call) Fail(err error) error {
	return c.b.Fail(err)
}
