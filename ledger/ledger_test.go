package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alphabill-org/alphabill-token-auth/attest"
	"github.com/alphabill-org/alphabill-token-auth/cbor"
	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

type testEnv struct {
	ledger *Ledger
	payer  *attest.KeyPair
	alice  *attest.KeyPair
}

func newTestEnv(t *testing.T, store Store, genesis ...*types.Account) *testEnv {
	t.Helper()
	payer, err := attest.GenerateKey()
	require.NoError(t, err)
	alice, err := attest.GenerateKey()
	require.NoError(t, err)

	l := New(store, attest.DefaultVerifier{}, WithLogger(zaptest.NewLogger(t)))
	acc := types.NewAccount(defaultID(payer.Address()))
	acc.Balance = 1000
	require.NoError(t, l.Genesis(context.Background(), append(genesis, acc)...))
	return &testEnv{ledger: l, payer: payer, alice: alice}
}

func defaultID(addr types.Address) types.AccountID {
	return types.NewAccountID(addr, types.DefaultTokenID)
}

// payment builds a transaction moving amount from the fee payer to alice
func (env *testEnv) payment(t *testing.T, amount uint64, opts ...transaction.Option) *transaction.Transaction {
	t.Helper()
	tx, err := env.ledger.Transaction(context.Background(), env.payer.Address(), func(b *transaction.Builder) error {
		if err := b.Update(b.Root()).Debit(amount); err != nil {
			return err
		}
		_, u, err := b.RequestUpdate(b.Root(), defaultID(env.alice.Address()))
		if err != nil {
			return err
		}
		return u.Credit(amount)
	}, opts...)
	require.NoError(t, err)
	return tx
}

func (env *testEnv) balance(t *testing.T, id types.AccountID) uint64 {
	t.Helper()
	acc, err := env.ledger.FetchAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func sign(t *testing.T, tx *transaction.Transaction, keys ...*attest.KeyPair) {
	t.Helper()
	_, err := attest.Sign(tx, keys...)
	require.NoError(t, err)
}

func TestSubmit_payment(t *testing.T) {
	t.Parallel()

	for name, store := range map[string]Store{"memory": NewMemoryStore(), "bolt": newBoltStore(t)} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t, store)
			tx := env.payment(t, 100, transaction.WithFee(3))
			sign(t, tx, env.payer)

			rcpt, err := env.ledger.Submit(ctx, tx)
			require.NoError(t, err)
			hash, err := tx.Hash()
			require.NoError(t, err)
			require.Equal(t, hash, rcpt.Hash)
			require.EqualValues(t, 3, rcpt.Fee)
			require.Equal(t, []types.AccountID{defaultID(env.payer.Address()), defaultID(env.alice.Address())}, rcpt.Updated)

			// receipt carries the applied transaction
			var applied transaction.Transaction
			require.NoError(t, cbor.Unmarshal(rcpt.Transaction, &applied))
			appliedHash, err := applied.Hash()
			require.NoError(t, err)
			require.Equal(t, hash, appliedHash)
			js, err := json.Marshal(rcpt)
			require.NoError(t, err)
			require.Contains(t, string(js), `"transaction":"`+hexutil.Encode(rcpt.Transaction)+`"`)

			require.EqualValues(t, 897, env.balance(t, defaultID(env.payer.Address())))
			require.EqualValues(t, 100, env.balance(t, defaultID(env.alice.Address())))
			payer, err := env.ledger.FetchAccount(ctx, defaultID(env.payer.Address()))
			require.NoError(t, err)
			require.EqualValues(t, 1, payer.Nonce)
			alice, err := env.ledger.FetchAccount(ctx, defaultID(env.alice.Address()))
			require.NoError(t, err)
			require.False(t, alice.IsNew)

			// replay
			_, err = env.ledger.Submit(ctx, tx)
			require.ErrorIs(t, err, types.ErrAuthorizationViolation)
			require.ErrorContains(t, err, "transaction nonce 0, fee payer nonce 1")
		})
	}
}

func TestSubmit_rejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unsigned", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore())
		tx := env.payment(t, 100)
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrAuthorizationViolation)
		require.EqualValues(t, 1000, env.balance(t, defaultID(env.payer.Address())))
	})

	t.Run("signed by somebody else", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore())
		tx := env.payment(t, 100)
		sign(t, tx, env.payer)
		tx.Update(tx.Root()).Authorization.Data, _ = env.alice.SignHash(make([]byte, 32))
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrAuthorizationViolation)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore())
		tx := env.payment(t, 1001)
		sign(t, tx, env.payer)
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrInvariantViolation)
		require.ErrorContains(t, err, "insufficient balance: 1000, debit 1001")
		require.Zero(t, env.balance(t, defaultID(env.alice.Address())))
	})

	t.Run("fee exceeds balance", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore())
		tx := env.payment(t, 1000, transaction.WithFee(1))
		sign(t, tx, env.payer)
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrInvariantViolation)
		require.ErrorContains(t, err, "paying fee")
	})

	t.Run("receive not permitted", func(t *testing.T) {
		store := NewMemoryStore()
		env := newTestEnv(t, store)
		alice := types.NewAccount(defaultID(env.alice.Address()))
		alice.Permissions.Receive = types.AuthImpossible
		require.NoError(t, env.ledger.Genesis(ctx, alice))

		tx := env.payment(t, 1)
		sign(t, tx, env.payer)
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrAuthorizationViolation)
		require.ErrorContains(t, err, "receive requires impossible authorization, got none")
	})

	t.Run("zero-sum violated", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore())
		tx := env.payment(t, 10)
		// increasing the credit after assembly
		require.NoError(t, tx.Update(tx.Tree().Children(tx.Root())[0]).Credit(1))
		sign(t, tx, env.payer)
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrInvariantViolation)
	})

	t.Run("stale precondition", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore())
		tx, err := env.ledger.Transaction(ctx, env.payer.Address(), func(b *transaction.Builder) error {
			b.Update(b.Root()).RequireBalance(999)
			return nil
		})
		require.NoError(t, err)
		sign(t, tx, env.payer)
		_, err = env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrAuthorizationViolation)
		require.ErrorContains(t, err, "balance precondition 999, actual 1000")
	})
}

func TestSubmit_contracts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vk := []byte{1, 2, 3}
	contractAddr := common.HexToAddress("0xc0")

	invoke := func(t *testing.T, env *testEnv, method string, body func(u *types.AccountUpdate)) *transaction.Transaction {
		tx, err := env.ledger.Transaction(ctx, env.payer.Address(), func(b *transaction.Builder) error {
			_, u, err := b.RequestUpdate(b.Root(), defaultID(contractAddr))
			if err != nil {
				return err
			}
			u.RequireProof(method)
			body(u)
			return nil
		})
		require.NoError(t, err)
		return tx
	}
	deployed := func() *types.Account {
		acc := types.NewAccount(defaultID(contractAddr))
		acc.VerificationKey = vk
		acc.Permissions.EditState = types.AuthProof
		return acc
	}

	t.Run("proven state change", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore(), deployed())
		tx := invoke(t, env, "init", func(u *types.AccountUpdate) { u.SetAppState(types.NewField(1)) })
		require.NoError(t, attest.ProveTransaction(ctx, tx, env.ledger, attest.CommitmentProver{}))
		sign(t, tx, env.payer)
		_, err := env.ledger.Submit(ctx, tx)
		require.NoError(t, err)

		acc, err := env.ledger.FetchAccount(ctx, defaultID(contractAddr))
		require.NoError(t, err)
		require.True(t, acc.AppState.Eq(types.NewField(1)))
	})

	t.Run("proof of another method", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore(), deployed())
		tx := invoke(t, env, "init", func(u *types.AccountUpdate) { u.SetAppState(types.NewField(1)) })
		require.NoError(t, attest.ProveTransaction(ctx, tx, env.ledger, attest.CommitmentProver{}))
		tx.Update(1).Authorization.Method = "other"
		sign(t, tx, env.payer)
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrAuthorizationViolation)
		require.ErrorContains(t, err, `invalid proof of method "other"`)
	})

	t.Run("signature where proof is required", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore(), deployed())
		tx := invoke(t, env, "init", func(u *types.AccountUpdate) {
			u.SetAppState(types.NewField(1))
			u.Sign()
		})
		sign(t, tx, env.payer)
		tx.Update(1).Authorization.Data = tx.Update(tx.Root()).Authorization.Data
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrAuthorizationViolation)
	})

	t.Run("not deployed", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore())
		tx := invoke(t, env, "init", func(u *types.AccountUpdate) { u.SetAppState(types.NewField(1)) })
		sign(t, tx, env.payer)
		_, err := env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrDeployViolation)
	})

	t.Run("verification key set twice", func(t *testing.T) {
		env := newTestEnv(t, NewMemoryStore(), deployed())
		contractKey, err := attest.GenerateKey()
		require.NoError(t, err)
		acc := deployed()
		acc.ID = defaultID(contractKey.Address())
		require.NoError(t, env.ledger.Genesis(ctx, acc))

		tx, err := env.ledger.Transaction(ctx, env.payer.Address(), func(b *transaction.Builder) error {
			_, u, err := b.RequestUpdate(b.Root(), acc.ID)
			if err != nil {
				return err
			}
			u.Sign()
			u.SetVerificationKey([]byte{9})
			return nil
		})
		require.NoError(t, err)
		sign(t, tx, env.payer, contractKey)
		_, err = env.ledger.Submit(ctx, tx)
		require.ErrorIs(t, err, types.ErrDeployViolation)
	})
}

func TestSubmit_noopUpdatesOfNewAccounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, NewMemoryStore())
	ghost := defaultID(common.HexToAddress("0x60"))
	tx, err := env.ledger.Transaction(ctx, env.payer.Address(), func(b *transaction.Builder) error {
		_, u, err := b.RequestUpdate(b.Root(), ghost)
		if err != nil {
			return err
		}
		u.RequireNew(true)
		return nil
	})
	require.NoError(t, err)
	sign(t, tx, env.payer)
	rcpt, err := env.ledger.Submit(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, []types.AccountID{defaultID(env.payer.Address())}, rcpt.Updated)

	acc, err := env.ledger.FetchAccount(ctx, ghost)
	require.NoError(t, err)
	require.True(t, acc.IsNew)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, NewMemoryStore())
	snapshot, err := env.ledger.Snapshot(ctx)
	require.NoError(t, err)
	defer snapshot.Close()

	tx := env.payment(t, 10)
	sign(t, tx, env.payer)
	_, err = env.ledger.Submit(ctx, tx)
	require.NoError(t, err)

	acc, err := snapshot.FetchAccount(ctx, defaultID(env.payer.Address()))
	require.NoError(t, err)
	require.EqualValues(t, 1000, acc.Balance)
	require.EqualValues(t, 990, env.balance(t, defaultID(env.payer.Address())))
}
