package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/alphabill-token-auth/cbor"
)

func TestAccountUpdateBody_Actions(t *testing.T) {
	t.Parallel()

	u := NewAccountUpdate(NewAccountID(common.HexToAddress("0x01"), DefaultTokenID))
	require.Empty(t, u.Body.Actions())
	require.True(t, u.Body.IsNoop())

	require.NoError(t, u.Debit(3))
	require.Equal(t, []Action{ActionSend}, u.Body.Actions())

	require.NoError(t, u.Credit(10))
	u.SetAppState(NewField(2))
	u.SetPermissions(DefaultPermissions())
	u.SetVerificationKey([]byte{1})
	require.Equal(t, []Action{ActionReceive, ActionEditState, ActionSetPermissions, ActionSetVerificationKey}, u.Body.Actions())
	require.False(t, u.Body.IsNoop())
}

func TestAccountUpdate_Copy(t *testing.T) {
	t.Parallel()

	u := NewAccountUpdate(NewAccountID(common.HexToAddress("0x01"), DefaultTokenID))
	u.SetAppState(NewField(2))
	u.SetVerificationKey([]byte{1, 2})
	u.RequireBalance(5)
	u.RequireProof("init")
	u.Authorization.Data = []byte{9}

	c := u.Copy()
	require.Equal(t, u, c)
	c.Body.VerificationKey[0] = 0
	*c.Body.Preconditions.Balance = 6
	c.Authorization.Data[0] = 0
	require.EqualValues(t, 1, u.Body.VerificationKey[0])
	require.EqualValues(t, 5, *u.Body.Preconditions.Balance)
	require.EqualValues(t, 9, u.Authorization.Data[0])
}

func TestAccountUpdateBody_Digest(t *testing.T) {
	t.Parallel()

	u := NewAccountUpdate(NewAccountID(common.HexToAddress("0x01"), DefaultTokenID))
	d1, err := u.Body.Digest()
	require.NoError(t, err)
	require.Len(t, d1, 32)

	// authorization is not part of the body digest
	u.Sign()
	d2, err := u.Body.Digest()
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	u.SetAppState(NewField(1))
	d3, err := u.Body.Digest()
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)
}

func TestAccountUpdate_cbor(t *testing.T) {
	t.Parallel()

	u := NewAccountUpdate(NewAccountID(common.HexToAddress("0x01"), DeriveTokenID(common.HexToAddress("0x02"), DefaultTokenID)))
	require.NoError(t, u.Debit(100))
	u.SetAppState(NewField(1 << 40))
	u.RequireNew(true)
	u.RequireProof("transfer")

	buf, err := cbor.Marshal(u)
	require.NoError(t, err)
	var out AccountUpdate
	require.NoError(t, cbor.Unmarshal(buf, &out))
	require.Equal(t, u, &out)
}

func TestPreconditions_Check(t *testing.T) {
	t.Parallel()

	acc := NewAccount(NewAccountID(common.HexToAddress("0x01"), DefaultTokenID))
	acc.Balance = 7
	acc.AppState = NewField(3)

	var p Preconditions
	require.NoError(t, p.Check(acc))

	balance := uint64(7)
	isNew := true
	p = Preconditions{Balance: &balance, IsNew: &isNew, AppState: NewField(3)}
	require.NoError(t, p.Check(acc))

	acc.Balance = 8
	require.ErrorIs(t, p.Check(acc), ErrAuthorizationViolation)
	acc.Balance = 7
	acc.IsNew = false
	require.ErrorIs(t, p.Check(acc), ErrAuthorizationViolation)
	acc.IsNew = true
	acc.AppState = NewField(4)
	require.ErrorIs(t, p.Check(acc), ErrAuthorizationViolation)
}

func TestAccount_Apply(t *testing.T) {
	t.Parallel()

	acc := NewAccount(NewAccountID(common.HexToAddress("0x01"), DefaultTokenID))
	body := &AccountUpdateBody{Account: acc.ID, BalanceChange: NewCredit(10), AppState: NewField(1)}
	res, err := acc.Apply(body)
	require.NoError(t, err)
	require.EqualValues(t, 10, res.Balance)
	require.True(t, NewField(1).Eq(res.AppState))
	require.False(t, res.IsNew)
	// original is not modified
	require.True(t, acc.IsNew)
	require.Zero(t, acc.Balance)

	_, err = res.Apply(&AccountUpdateBody{Account: acc.ID, BalanceChange: NewDebit(11)})
	require.ErrorIs(t, err, ErrInvariantViolation)
}
