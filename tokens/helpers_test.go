package tokens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alphabill-org/alphabill-token-auth/attest"
	"github.com/alphabill-org/alphabill-token-auth/contract"
	"github.com/alphabill-org/alphabill-token-auth/ledger"
	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

// env is a ledger with the contracts of the payment scenario
type env struct {
	ledger *ledger.Ledger

	feePayer  *attest.KeyPair
	tokenKey  *attest.KeyPair
	payerKey  *attest.KeyPair
	stateKey  *attest.KeyPair
	token     *TokenContract
	payer     *PayerContract
	consumer  *StateContract
	tokenAddr types.Address
	payerAddr types.Address
	stateAddr types.Address
}

func newKey(t *testing.T) *attest.KeyPair {
	t.Helper()
	k, err := attest.GenerateKey()
	require.NoError(t, err)
	return k
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	e := &env{
		feePayer: newKey(t),
		tokenKey: newKey(t),
		payerKey: newKey(t),
		stateKey: newKey(t),
	}
	e.tokenAddr, e.payerAddr, e.stateAddr = e.tokenKey.Address(), e.payerKey.Address(), e.stateKey.Address()
	e.token = NewTokenContract(e.tokenAddr, VerificationKey("TokenContract"), opts...)
	e.payer = NewPayerContract(e.payerAddr, e.token.OwnedTokenID(), VerificationKey("PayerContract"))
	e.consumer = NewStateContract(e.stateAddr, e.token.OwnedTokenID(), VerificationKey("StateContract"))

	e.ledger = ledger.New(ledger.NewMemoryStore(), attest.DefaultVerifier{}, ledger.WithLogger(zaptest.NewLogger(t)))
	payer := types.NewAccount(types.NewAccountID(e.feePayer.Address(), types.DefaultTokenID))
	payer.Balance = 1_000_000
	require.NoError(t, e.ledger.Genesis(context.Background(), payer))
	return e
}

// submit assembles, proves, signs and submits a transaction paid by the fee payer
func (e *env) submit(t *testing.T, assemble func(b *transaction.Builder) error, keys ...*attest.KeyPair) error {
	t.Helper()
	ctx := context.Background()
	tx, err := e.ledger.Transaction(ctx, e.feePayer.Address(), assemble)
	if err != nil {
		return err
	}
	if err := attest.ProveTransaction(ctx, tx, e.ledger, attest.CommitmentProver{}); err != nil {
		return err
	}
	_, err = attest.Sign(tx, append(keys, e.feePayer)...)
	require.NoError(t, err)
	_, err = e.ledger.Submit(ctx, tx)
	return err
}

// builder returns a builder reading from a snapshot of the ledger
func (e *env) builder(t *testing.T) *transaction.Builder {
	t.Helper()
	snapshot, err := e.ledger.Snapshot(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = snapshot.Close() })
	b, err := transaction.NewBuilder(context.Background(), snapshot, e.feePayer.Address())
	require.NoError(t, err)
	return b
}

func (e *env) deployAndInit(t *testing.T) {
	t.Helper()
	require.NoError(t, e.submit(t, func(b *transaction.Builder) error {
		if err := e.token.Deploy(b); err != nil {
			return err
		}
		return e.token.Init(b)
	}, e.tokenKey))
}

func (e *env) deployManaged(t *testing.T) {
	t.Helper()
	require.NoError(t, e.submit(t, func(b *transaction.Builder) error {
		if err := e.token.DeployManagedAccount(b, e.payerAddr, e.payer.VerificationKey()); err != nil {
			return err
		}
		return e.token.DeployManagedAccount(b, e.stateAddr, e.consumer.VerificationKey())
	}, e.payerKey, e.stateKey))
}

func (e *env) initConsumer(t *testing.T) {
	t.Helper()
	require.NoError(t, e.submit(t, func(b *transaction.Builder) error {
		return e.token.ApproveStateCallback(b, contract.NewCallback(e.consumer, MethodInit))
	}))
}

func (e *env) fundPayer(t *testing.T, amount uint64) {
	t.Helper()
	require.NoError(t, e.submit(t, func(b *transaction.Builder) error {
		return e.token.Transfer(b, e.tokenAddr, e.payerAddr, amount)
	}, e.tokenKey))
}

// setup runs every step of the scenario up to (not including) the payment
func (e *env) setup(t *testing.T) {
	t.Helper()
	e.deployAndInit(t)
	e.deployManaged(t)
	e.initConsumer(t)
	e.fundPayer(t, 100_000)
}

// pay changes the state of the consumer to newState by paying amount from the payer
func (e *env) pay(t *testing.T, amount uint64, newState uint64) error {
	t.Helper()
	return e.submit(t, func(b *transaction.Builder) error {
		cb := contract.NewCallback(e.consumer, MethodUpdateStateIfUSDCIsSent, amount, types.NewField(newState))
		return e.token.ApproveCallback(b, cb, amount, e.payerAddr)
	}, e.payerKey, e.stateKey, e.tokenKey)
}

func (e *env) account(t *testing.T, addr types.Address, tokenID types.TokenID) *types.Account {
	t.Helper()
	acc, err := e.ledger.FetchAccount(context.Background(), types.NewAccountID(addr, tokenID))
	require.NoError(t, err)
	return acc
}

func (e *env) tokenBalance(t *testing.T, addr types.Address) uint64 {
	t.Helper()
	return e.account(t, addr, e.token.OwnedTokenID()).Balance
}

func (e *env) consumerState(t *testing.T) *types.Field {
	t.Helper()
	return e.account(t, e.stateAddr, e.token.OwnedTokenID()).AppState
}

func proveAndSign(t *testing.T, e *env, tx *transaction.Transaction) error {
	t.Helper()
	if err := attest.ProveTransaction(context.Background(), tx, e.ledger, attest.CommitmentProver{}); err != nil {
		return err
	}
	_, err := attest.Sign(tx, e.feePayer, e.tokenKey, e.payerKey, e.stateKey)
	return err
}
