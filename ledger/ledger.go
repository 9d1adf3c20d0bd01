/*
Package ledger applies transactions of account updates to the account
state: it enforces the permission policies of the accounts, verifies the
authorizations and re-checks the transaction invariants before committing
all the updates of a transaction atomically.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/alphabill-org/alphabill-token-auth/attest"
	"github.com/alphabill-org/alphabill-token-auth/cbor"
	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
	"github.com/alphabill-org/alphabill-token-auth/util"
)

type (
	Option func(*Ledger)

	// Ledger is safe for concurrent use, transactions are applied one at a time.
	Ledger struct {
		store    Store
		verifier attest.Verifier
		log      *zap.Logger
		mu       sync.Mutex
	}

	// Receipt of an applied transaction.
	Receipt struct {
		Hash        []byte            `json:"hash"`
		FeePayer    types.Address     `json:"feePayer"`
		Nonce       uint64            `json:"nonce,string"`
		Fee         uint64            `json:"fee,string"`
		Updated     []types.AccountID `json:"updated"`
		Transaction cbor.RawCBOR      `json:"transaction"` // CBOR encoding of the applied transaction
	}
)

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

func New(store Store, verifier attest.Verifier, opts ...Option) *Ledger {
	l := &Ledger{store: store, verifier: verifier, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

/*
FetchAccount returns the current state of the account. Accounts which do
not exist are returned as new accounts with default permissions.
*/
func (l *Ledger) FetchAccount(ctx context.Context, id types.AccountID) (*types.Account, error) {
	view, err := l.store.View(ctx)
	if err != nil {
		return nil, err
	}
	defer view.Close()
	return fetch(view, id)
}

func fetch(view View, id types.AccountID) (*types.Account, error) {
	acc, err := view.Account(id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return types.NewAccount(id), nil
	}
	return acc, nil
}

// Snapshot is a consistent read-only view of the ledger, usable as transaction.AccountReader.
type Snapshot struct {
	view View
}

// Snapshot returns a view of the current state. It must be closed before submitting from the same goroutine.
func (l *Ledger) Snapshot(ctx context.Context) (*Snapshot, error) {
	view, err := l.store.View(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{view: view}, nil
}

func (s *Snapshot) FetchAccount(ctx context.Context, id types.AccountID) (*types.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fetch(s.view, id)
}

func (s *Snapshot) Accounts(fn func(*types.Account) error) error {
	return s.view.Accounts(fn)
}

func (s *Snapshot) Close() error {
	return s.view.Close()
}

/*
Transaction assembles a transaction with fee payer feePayer against a
snapshot of the ledger. The snapshot is released before returning.
*/
func (l *Ledger) Transaction(ctx context.Context, feePayer types.Address, assemble func(b *transaction.Builder) error, opts ...transaction.Option) (*transaction.Transaction, error) {
	snapshot, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snapshot.Close()

	opts = append([]transaction.Option{transaction.WithLogger(l.log)}, opts...)
	b, err := transaction.NewBuilder(ctx, snapshot, feePayer, opts...)
	if err != nil {
		return nil, err
	}
	if err := assemble(b); err != nil {
		return nil, err
	}
	return b.Build()
}

/*
Genesis stores the accounts as they are (marked as existing), bypassing
all the checks. Meant for initializing the ledger.
*/
func (l *Ledger) Genesis(ctx context.Context, accounts ...*types.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := make([]*types.Account, 0, len(accounts))
	for _, acc := range accounts {
		acc = acc.Copy()
		acc.IsNew = false
		stored = append(stored, acc)
	}
	if err := l.store.Commit(ctx, stored); err != nil {
		return fmt.Errorf("storing genesis accounts: %w", err)
	}
	l.log.Info("genesis accounts stored", zap.Int("count", len(stored)))
	return nil
}

/*
Submit applies tx to the ledger or rejects it as a whole. Returned errors
wrap one of the error kinds of the types package when the transaction
itself is at fault.
*/
func (l *Ledger) Submit(ctx context.Context, tx *transaction.Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, transaction.ErrTransactionIsNil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.log.With(zap.Stringer("fee_payer", tx.FeePayer), zap.Uint64("nonce", tx.Nonce))
	rcpt, accounts, err := l.apply(ctx, tx)
	if err != nil {
		log.Info("transaction rejected", zap.Error(err), zap.Int("updates", len(tx.Nodes())))
		return nil, err
	}
	if err := l.store.Commit(ctx, accounts); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	log.Info("transaction applied", zap.String("hash", hexutil.Encode(rcpt.Hash)), zap.Int("updates", len(tx.Nodes())), zap.Int("accounts", len(accounts)))
	return rcpt, nil
}

// apply computes the accounts changed by tx. The view is released before returning.
func (l *Ledger) apply(ctx context.Context, tx *transaction.Transaction) (_ *Receipt, _ []*types.Account, rErr error) {
	if err := tx.Validate(); err != nil {
		return nil, nil, err
	}
	view, err := l.store.View(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { rErr = errors.Join(rErr, view.Close()) }()

	st := newState(view)
	payerID := types.NewAccountID(tx.FeePayer, types.DefaultTokenID)
	payer, err := st.get(payerID)
	if err != nil {
		return nil, nil, err
	}
	if payer.Nonce != tx.Nonce {
		return nil, nil, types.Violation(types.ErrAuthorizationViolation, "transaction nonce %d, fee payer nonce %d", tx.Nonce, payer.Nonce)
	}

	isNew := func(id types.AccountID) (bool, error) {
		acc, err := fetch(view, id)
		if err != nil {
			return false, err
		}
		return acc.IsNew, nil
	}
	if err := transaction.CheckInvariants(tx, isNew); err != nil {
		return nil, nil, err
	}

	msg, err := tx.Hash()
	if err != nil {
		return nil, nil, err
	}
	for _, id := range tx.Nodes() {
		if err := l.applyUpdate(st, tx, id, msg); err != nil {
			u := tx.Update(id)
			return nil, nil, fmt.Errorf("update %d of %s: %w", id, u.AccountID(), err)
		}
	}

	if payer, err = st.get(payerID); err != nil {
		return nil, nil, err
	}
	if payer, err = payer.Apply(&types.AccountUpdateBody{BalanceChange: types.NewDebit(tx.Fee)}); err != nil {
		return nil, nil, fmt.Errorf("paying fee: %w", err)
	}
	payer.Nonce++
	payer.IsNew = false
	st.set(payer)

	encoded, err := cbor.Marshal(tx)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding transaction: %w", err)
	}
	return &Receipt{Hash: msg, FeePayer: tx.FeePayer, Nonce: tx.Nonce, Fee: tx.Fee, Updated: st.updated(), Transaction: encoded}, st.changed(), nil
}

func (l *Ledger) applyUpdate(st *state, tx *transaction.Transaction, id transaction.NodeID, msg []byte) error {
	u := tx.Update(id)
	acc, err := st.get(u.AccountID())
	if err != nil {
		return err
	}
	if err := u.Body.Preconditions.Check(acc); err != nil {
		return err
	}

	switch u.Authorization.Kind {
	case types.AuthKindSignature:
		if err := l.verifier.VerifySignature(msg, u.Authorization.Data, u.AccountID().Address); err != nil {
			return err
		}
	case types.AuthKindProof:
		if !acc.IsContract() {
			return types.Violation(types.ErrDeployViolation, "method %q invoked on account without verification key", u.Authorization.Method)
		}
		commitment, err := tx.Commitment(id)
		if err != nil {
			return err
		}
		if err := l.verifier.VerifyProof(acc.VerificationKey, u.Authorization.Method, commitment, u.Authorization.Data); err != nil {
			return err
		}
	}

	for _, action := range u.Body.Actions() {
		if err := acc.Permissions.Check(action, u.Authorization.Kind); err != nil {
			return err
		}
	}
	if u.Body.VerificationKey != nil && acc.IsContract() {
		return types.Violation(types.ErrDeployViolation, "verification key is already set")
	}

	if u.Body.IsNoop() {
		return nil
	}
	next, err := acc.Apply(&u.Body)
	if err != nil {
		return err
	}
	st.set(next)
	return nil
}

// state is the working copy of the accounts touched by a transaction.
type state struct {
	view     View
	accounts map[types.AccountID]*types.Account
	dirty    map[types.AccountID]bool
	order    []types.AccountID
}

func newState(view View) *state {
	return &state{view: view, accounts: map[types.AccountID]*types.Account{}, dirty: map[types.AccountID]bool{}}
}

func (s *state) get(id types.AccountID) (*types.Account, error) {
	if acc, ok := s.accounts[id]; ok {
		return acc, nil
	}
	acc, err := fetch(s.view, id)
	if err != nil {
		return nil, fmt.Errorf("reading account %s: %w", id, err)
	}
	s.accounts[id] = acc
	return acc, nil
}

func (s *state) set(acc *types.Account) {
	if !s.dirty[acc.ID] {
		s.dirty[acc.ID] = true
		s.order = append(s.order, acc.ID)
	}
	s.accounts[acc.ID] = acc
}

// changed returns the modified accounts which exist after the transaction, in the order of first change.
func (s *state) changed() []*types.Account {
	var res []*types.Account
	for _, id := range s.order {
		if acc := s.accounts[id]; !acc.IsNew {
			res = append(res, acc)
		}
	}
	return res
}

func (s *state) updated() []types.AccountID {
	return util.TransformSlice(s.changed(), func(acc *types.Account) types.AccountID { return acc.ID })
}
