/*
Package contract implements execution of contract methods during transaction
assembly and delegation of authorization between contracts via callbacks.

A contract method runs against its own account update (created by the
caller of the method) and may request further updates as children of it.
Instead of building an update itself a method may authorize a Callback:
the callback's method is executed detached from the tree, the result is
checked against the layout the authorizing method requires and spliced
under the authorizing method's own update.
*/
package contract

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

var ErrUnknownMethod = errors.New("unknown method")

// Contract is implemented by every contract account kind.
type Contract interface {
	Address() types.Address
	TokenID() types.TokenID
	// Assemble executes method with args, building the update of call.
	Assemble(call *Call, method string, args []any) (any, error)
}

// AccountID returns the account the contract's own updates are made to.
func AccountID(c Contract) types.AccountID {
	return types.NewAccountID(c.Address(), c.TokenID())
}

// Result of a contract method invocation.
type Result struct {
	Node  transaction.NodeID
	Value any
}

/*
Invoke executes a method of contract c as a top-level call, ie the update of
the contract is appended as a child of the fee payer update.
*/
func Invoke(b *transaction.Builder, c Contract, method string, args ...any) (*Result, error) {
	node, _, err := b.RequestUpdate(b.Root(), AccountID(c))
	if err != nil {
		return nil, err
	}
	return execute(b, c, node, method, args)
}

// execute runs the method against the (already created) own update node.
func execute(b *transaction.Builder, c Contract, node transaction.NodeID, method string, args []any) (*Result, error) {
	b.Update(node).RequireProof(method)
	call := &Call{b: b, contract: c, method: method, self: node}
	b.Logger().Debug("executing contract method", zap.Stringer("contract", AccountID(c)), zap.String("method", method), zap.Int("node", int(node)))
	value, err := c.Assemble(call, method, args)
	if err != nil {
		return nil, b.Fail(fmt.Errorf("%s.%s: %w", c.Address().Hex(), method, err))
	}
	return &Result{Node: node, Value: value}, nil
}

// UnknownMethod is the error Assemble implementations return for unsupported method names.
func UnknownMethod(c Contract, method string) error {
	return fmt.Errorf("%w %q of contract %s", ErrUnknownMethod, method, c.Address().Hex())
}

/*
Arg returns args[i] as T. Contract methods use it to decode their
positional arguments.
*/
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("missing argument %d", i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("argument %d: expected %T, got %T", i, zero, args[i])
	}
	return v, nil
}
