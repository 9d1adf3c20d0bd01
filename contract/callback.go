package contract

import (
	"fmt"

	"github.com/alphabill-org/alphabill-token-auth/transaction"
)

type callbackState uint8

const (
	unresolved callbackState = iota
	resolved
)

/*
Callback is a deferred invocation of a contract method. Creating it executes
nothing, the method runs when a contract method authorizes the callback.
Every authorization executes the method again and produces a new independent
update, the handle only remembers the latest one.
*/
type Callback struct {
	contract    Contract
	method      string
	args        []any
	state       callbackState
	node        transaction.NodeID
	resolutions int
}

func NewCallback(c Contract, method string, args ...any) *Callback {
	return &Callback{contract: c, method: method, args: args, node: transaction.NoParent}
}

func (cb *Callback) Contract() Contract {
	return cb.contract
}

func (cb *Callback) Method() string {
	return cb.method
}

// Resolved returns the node created by the latest resolution.
func (cb *Callback) Resolved() (transaction.NodeID, bool) {
	return cb.node, cb.state == resolved
}

// Resolutions returns how many times the callback has been executed.
func (cb *Callback) Resolutions() int {
	return cb.resolutions
}

func (cb *Callback) String() string {
	return fmt.Sprintf("%s.%s", cb.contract.Address().Hex(), cb.method)
}

// resolve executes the method producing a detached subtree.
func (cb *Callback) resolve(b *transaction.Builder) (transaction.NodeID, error) {
	node, _, err := b.NewDetached(AccountID(cb.contract))
	if err != nil {
		return transaction.NoParent, err
	}
	cb.resolutions++
	res, err := execute(b, cb.contract, node, cb.method, cb.args)
	if err != nil {
		return transaction.NoParent, fmt.Errorf("callback %s: %w", cb, err)
	}
	cb.node, cb.state = res.Node, resolved
	return res.Node, nil
}
