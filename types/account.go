package types

import "bytes"

/*
Account is the ledger state of an AccountID. Accounts which do not exist
in the ledger are represented with IsNew set, zero balance and default
permissions.
*/
type Account struct {
	_               struct{}    `cbor:",toarray"`
	ID              AccountID   `json:"id"`
	Balance         uint64      `json:"balance,string"`
	AppState        *Field      `json:"appState"`
	Permissions     Permissions `json:"permissions"`
	VerificationKey []byte      `json:"verificationKey"`
	Nonce           uint64      `json:"nonce,string"`
	IsNew           bool        `json:"isNew"`
}

func NewAccount(id AccountID) *Account {
	return &Account{ID: id, Permissions: DefaultPermissions(), IsNew: true}
}

// IsContract returns true when a verification key has been deployed to the account.
func (a *Account) IsContract() bool {
	return len(a.VerificationKey) != 0
}

func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		ID:              a.ID,
		Balance:         a.Balance,
		AppState:        a.AppState.Copy(),
		Permissions:     a.Permissions,
		VerificationKey: bytes.Clone(a.VerificationKey),
		Nonce:           a.Nonce,
		IsNew:           a.IsNew,
	}
}

/*
Apply returns copy of a with the changes of body applied. Policy and
authorization are not checked here, the caller does that.
*/
func (a *Account) Apply(body *AccountUpdateBody) (*Account, error) {
	res := a.Copy()
	balance, err := body.BalanceChange.Apply(a.Balance)
	if err != nil {
		return nil, err
	}
	res.Balance = balance
	if body.AppState != nil {
		res.AppState = body.AppState.Copy()
	}
	if body.Permissions != nil {
		res.Permissions = *body.Permissions
	}
	if body.VerificationKey != nil {
		res.VerificationKey = bytes.Clone(body.VerificationKey)
	}
	res.IsNew = a.IsNew && body.IsNoop()
	return res, nil
}
