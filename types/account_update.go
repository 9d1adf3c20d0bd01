package types

import (
	"bytes"
	"crypto"
	"fmt"

	abhash "github.com/alphabill-org/alphabill-token-auth/hash"
)

type (
	// AccountUpdateBody is the proposed change of a single account. Optional
	// fields left nil mean "no change".
	AccountUpdateBody struct {
		_               struct{}      `cbor:",toarray"`
		Account         AccountID     // the account being updated
		BalanceChange   BalanceChange // proposed change of the balance
		AppState        *Field        // new value of the state slot
		Permissions     *Permissions  // new permission policy
		VerificationKey []byte        // new verification key, set when deploying a contract
		Mint            bool          // designated mint of the token id, excluded from the zero-sum
		Preconditions   Preconditions // assertions about the account state at application time
	}

	// Preconditions are checked against the ledger state the update is applied to.
	Preconditions struct {
		_        struct{} `cbor:",toarray"`
		Balance  *uint64
		IsNew    *bool
		AppState *Field
	}

	// Authorization is the tag accompanying an update. Method names the contract
	// method which computed the update when Kind is AuthKindProof. Data is the
	// signature or proof bytes, filled in before submission.
	Authorization struct {
		_      struct{} `cbor:",toarray"`
		Kind   AuthKind
		Method string
		Data   []byte
	}

	// AccountUpdate is one node of a transaction: body plus authorization.
	AccountUpdate struct {
		_             struct{} `cbor:",toarray"`
		Body          AccountUpdateBody
		Authorization Authorization
	}
)

func NewAccountUpdate(id AccountID) *AccountUpdate {
	return &AccountUpdate{Body: AccountUpdateBody{Account: id, BalanceChange: NewCredit(0)}}
}

func (u *AccountUpdate) AccountID() AccountID {
	return u.Body.Account
}

// Sign marks the update to be authorized by the signature of the account owner.
func (u *AccountUpdate) Sign() {
	u.Authorization = Authorization{Kind: AuthKindSignature}
}

// RequireProof marks the update to be authorized by a proof of the contract method.
func (u *AccountUpdate) RequireProof(method string) {
	u.Authorization = Authorization{Kind: AuthKindProof, Method: method}
}

func (u *AccountUpdate) SetAppState(v *Field) {
	u.Body.AppState = v.Copy()
}

func (u *AccountUpdate) SetPermissions(p Permissions) {
	u.Body.Permissions = &p
}

func (u *AccountUpdate) SetVerificationKey(vk []byte) {
	u.Body.VerificationKey = bytes.Clone(vk)
}

// AddBalance adds delta to the proposed balance change.
func (u *AccountUpdate) AddBalance(delta BalanceChange) error {
	sum, err := u.Body.BalanceChange.Add(delta)
	if err != nil {
		return fmt.Errorf("account %s: %w", u.Body.Account, err)
	}
	u.Body.BalanceChange = sum
	return nil
}

func (u *AccountUpdate) Credit(amount uint64) error {
	return u.AddBalance(NewCredit(amount))
}

func (u *AccountUpdate) Debit(amount uint64) error {
	return u.AddBalance(NewDebit(amount))
}

// RequireBalance pins the balance the update may be applied to.
func (u *AccountUpdate) RequireBalance(balance uint64) {
	u.Body.Preconditions.Balance = &balance
}

func (u *AccountUpdate) RequireNew(isNew bool) {
	u.Body.Preconditions.IsNew = &isNew
}

/*
Actions returns the permission actions the body exercises, in the order the
ledger checks them.
*/
func (b *AccountUpdateBody) Actions() []Action {
	var actions []Action
	switch {
	case b.BalanceChange.IsNegative():
		actions = append(actions, ActionSend)
	case b.BalanceChange.IsPositive():
		actions = append(actions, ActionReceive)
	}
	if b.AppState != nil {
		actions = append(actions, ActionEditState)
	}
	if b.Permissions != nil {
		actions = append(actions, ActionSetPermissions)
	}
	if b.VerificationKey != nil {
		actions = append(actions, ActionSetVerificationKey)
	}
	return actions
}

// Digest is the hash of the CBOR encoding of the body.
func (b *AccountUpdateBody) Digest() ([]byte, error) {
	return abhash.Sum(crypto.SHA256, b)
}

// Copy returns deep copy of u.
func (u *AccountUpdate) Copy() *AccountUpdate {
	if u == nil {
		return nil
	}
	c := *u
	c.Body.AppState = u.Body.AppState.Copy()
	if u.Body.Permissions != nil {
		p := *u.Body.Permissions
		c.Body.Permissions = &p
	}
	c.Body.VerificationKey = bytes.Clone(u.Body.VerificationKey)
	c.Body.Preconditions.AppState = u.Body.Preconditions.AppState.Copy()
	if u.Body.Preconditions.Balance != nil {
		v := *u.Body.Preconditions.Balance
		c.Body.Preconditions.Balance = &v
	}
	if u.Body.Preconditions.IsNew != nil {
		v := *u.Body.Preconditions.IsNew
		c.Body.Preconditions.IsNew = &v
	}
	c.Authorization.Data = bytes.Clone(u.Authorization.Data)
	return &c
}

// Check returns AuthorizationViolation when acc doesn't satisfy the preconditions.
func (p Preconditions) Check(acc *Account) error {
	if p.Balance != nil && *p.Balance != acc.Balance {
		return Violation(ErrAuthorizationViolation, "account %s: balance precondition %d, actual %d", acc.ID, *p.Balance, acc.Balance)
	}
	if p.IsNew != nil && *p.IsNew != acc.IsNew {
		return Violation(ErrAuthorizationViolation, "account %s: isNew precondition %t, actual %t", acc.ID, *p.IsNew, acc.IsNew)
	}
	if p.AppState != nil && !p.AppState.Eq(acc.AppState) {
		return Violation(ErrAuthorizationViolation, "account %s: state precondition %s, actual %s", acc.ID, p.AppState, acc.AppState)
	}
	return nil
}

// IsNoop returns true when applying the body changes nothing but the preconditions are checked.
func (b *AccountUpdateBody) IsNoop() bool {
	return b.BalanceChange.IsZero() && b.AppState == nil && b.Permissions == nil && b.VerificationKey == nil
}
