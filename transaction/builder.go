package transaction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

// AccountReader is the read-only view of the ledger a transaction is assembled against.
type AccountReader interface {
	FetchAccount(ctx context.Context, id types.AccountID) (*types.Account, error)
}

var ErrBuilderSealed = errors.New("transaction has already been built")

type (
	Option func(*builderOptions)

	builderOptions struct {
		fee  uint64
		memo string
		log  *zap.Logger
	}
)

func WithFee(fee uint64) Option {
	return func(o *builderOptions) { o.fee = fee }
}

func WithMemo(memo string) Option {
	return func(o *builderOptions) { o.memo = memo }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *builderOptions) { o.log = log }
}

/*
Builder is the assembly context of a single transaction. It holds the
update tree and the ledger snapshot the contract methods read from.

The first error reported to the builder (either returned by one of its
methods or passed to Fail) is sticky: every later call returns it and
Build refuses to produce a transaction. A Builder is not safe for
concurrent use, independent transactions use independent builders.
*/
type Builder struct {
	ctx      context.Context
	reader   AccountReader
	log      *zap.Logger
	tx       *Transaction
	accounts map[types.AccountID]*types.Account
	err      error
	sealed   bool
}

func NewBuilder(ctx context.Context, reader AccountReader, feePayer types.Address, opts ...Option) (*Builder, error) {
	o := builderOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	b := &Builder{
		ctx:      ctx,
		reader:   reader,
		log:      o.log,
		accounts: map[types.AccountID]*types.Account{},
	}
	payer, err := b.Account(types.NewAccountID(feePayer, types.DefaultTokenID))
	if err != nil {
		return nil, fmt.Errorf("reading fee payer account: %w", err)
	}
	b.tx = newTransaction(feePayer, payer.Nonce)
	b.tx.Fee = o.fee
	b.tx.Memo = o.memo
	return b, nil
}

func (b *Builder) Context() context.Context {
	return b.ctx
}

func (b *Builder) Logger() *zap.Logger {
	return b.log
}

// Root returns the fee payer node.
func (b *Builder) Root() NodeID {
	return b.tx.Root()
}

func (b *Builder) Tree() *Tree {
	return b.tx.tree
}

func (b *Builder) Update(id NodeID) *types.AccountUpdate {
	return b.tx.tree.Update(id)
}

// Err returns the first error the assembly failed with.
func (b *Builder) Err() error {
	return b.err
}

// Fail records err as the reason the transaction can't be built and returns it.
func (b *Builder) Fail(err error) error {
	if err == nil {
		return nil
	}
	if b.err == nil {
		b.err = err
		b.log.Debug("transaction assembly failed", zap.Error(err))
	}
	return b.err
}

func (b *Builder) usable() error {
	if b.err != nil {
		return b.err
	}
	if b.sealed {
		return ErrBuilderSealed
	}
	return b.ctx.Err()
}

// Account returns a copy of the snapshot state of the account.
func (b *Builder) Account(id types.AccountID) (*types.Account, error) {
	if acc, ok := b.accounts[id]; ok {
		return acc.Copy(), nil
	}
	acc, err := b.reader.FetchAccount(b.ctx, id)
	if err != nil {
		return nil, err
	}
	b.accounts[id] = acc.Copy()
	return acc, nil
}

/*
EffectiveAccount returns the snapshot state of the account with the updates
already attached to the transaction applied in order, ie the state contract
methods executing later in the same transaction observe.
*/
func (b *Builder) EffectiveAccount(id types.AccountID) (*types.Account, error) {
	acc, err := b.Account(id)
	if err != nil {
		return nil, err
	}
	for _, n := range b.tx.Nodes() {
		u := b.tx.Update(n)
		if !u.AccountID().Eq(id) {
			continue
		}
		if acc, err = acc.Apply(&u.Body); err != nil {
			return nil, fmt.Errorf("applying pending update %d: %w", n, err)
		}
	}
	return acc, nil
}

// RequestUpdate appends a new update of account id as the last child of parent.
func (b *Builder) RequestUpdate(parent NodeID, id types.AccountID) (NodeID, *types.AccountUpdate, error) {
	if err := b.usable(); err != nil {
		return NoParent, nil, err
	}
	u := types.NewAccountUpdate(id)
	n, err := b.tx.tree.Add(u, parent)
	if err != nil {
		return NoParent, nil, b.Fail(err)
	}
	b.log.Debug("account update requested", zap.Int("node", int(n)), zap.Int("parent", int(parent)), zap.Stringer("account", id))
	return n, u, nil
}

// NewDetached creates an update which is not (yet) part of the transaction tree.
func (b *Builder) NewDetached(id types.AccountID) (NodeID, *types.AccountUpdate, error) {
	if err := b.usable(); err != nil {
		return NoParent, nil, err
	}
	u := types.NewAccountUpdate(id)
	return b.tx.tree.AddDetached(u), u, nil
}

/*
Authorize checks the detached subtree at node against layout and splices
it under parent. Layout mismatch fails the whole transaction.
*/
func (b *Builder) Authorize(node, parent NodeID, layout Layout) error {
	if err := b.usable(); err != nil {
		return err
	}
	if err := layout.Check(b.tx.tree, node); err != nil {
		return b.Fail(err)
	}
	if err := b.tx.tree.Attach(node, parent); err != nil {
		return b.Fail(err)
	}
	b.log.Debug("account update authorized", zap.Int("node", int(node)), zap.Int("parent", int(parent)), zap.Stringer("layout", layout))
	return nil
}

/*
Build finishes the assembly: verifies structure and the balance invariants
against the snapshot and returns the transaction. The builder can't be used
after a successful Build.
*/
func (b *Builder) Build() (*Transaction, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}
	isNew := func(id types.AccountID) (bool, error) {
		acc, err := b.Account(id)
		if err != nil {
			return false, err
		}
		return acc.IsNew, nil
	}
	if err := CheckInvariants(b.tx, isNew); err != nil {
		return nil, b.Fail(err)
	}
	b.sealed = true
	b.log.Debug("transaction built", zap.Int("updates", len(b.tx.Nodes())))
	return b.tx, nil
}
