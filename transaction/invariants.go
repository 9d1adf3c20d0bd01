package transaction

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

// IsNewFunc reports whether the account doesn't exist in the ledger state the check runs against.
type IsNewFunc func(types.AccountID) (bool, error)

type tokenSum struct {
	credits uint256.Int
	debits  uint256.Int
	mint    NodeID
}

/*
CheckBalances verifies the zero-sum and mint-once invariants: for every
token id the signed balance changes of all the updates sum to zero, except
for at most one update marked as mint. The mint must be a strictly positive
change of an account which is new according to isNew and it can't be the
default token.
*/
func CheckBalances(tx *Transaction, isNew IsNewFunc) error {
	sums := map[types.TokenID]*tokenSum{}
	var order []types.TokenID
	for _, id := range tx.Nodes() {
		body := &tx.Update(id).Body
		tokenID := body.Account.TokenID
		s, ok := sums[tokenID]
		if !ok {
			s = &tokenSum{mint: NoParent}
			sums[tokenID] = s
			order = append(order, tokenID)
		}
		if body.Mint {
			if err := checkMint(tx, id, s.mint, isNew); err != nil {
				return err
			}
			s.mint = id
			continue
		}
		delta := uint256.NewInt(body.BalanceChange.Magnitude)
		if body.BalanceChange.IsNegative() {
			s.debits.Add(&s.debits, delta)
		} else {
			s.credits.Add(&s.credits, delta)
		}
	}
	for _, tokenID := range order {
		s := sums[tokenID]
		if !s.credits.Eq(&s.debits) {
			return types.Violation(types.ErrInvariantViolation, "balance changes of token %s do not sum to zero: credits %s, debits %s", tokenID.TerminalString(), s.credits.Dec(), s.debits.Dec())
		}
	}
	return nil
}

func checkMint(tx *Transaction, id, prevMint NodeID, isNew IsNewFunc) error {
	body := &tx.Update(id).Body
	if body.Account.IsDefaultToken() {
		return types.Violation(types.ErrMintViolation, "default token can't be minted")
	}
	if prevMint != NoParent {
		return types.Violation(types.ErrMintViolation, "token %s is minted more than once (updates %d and %d)", body.Account.TokenID.TerminalString(), prevMint, id)
	}
	parent := tx.tree.Update(tx.tree.Parent(id))
	if parent == nil || !ownsToken(parent, body.Account.TokenID) || parent.Authorization.Kind != types.AuthKindProof {
		return types.Violation(types.ErrMintViolation, "mint of %s must be a child of a proof authorized update of the token owner", body.Account)
	}
	if body.Account.Address != parent.AccountID().Address {
		return types.Violation(types.ErrMintViolation, "token %s can only be minted to its owner %s, got %s", body.Account.TokenID.TerminalString(), parent.AccountID(), body.Account)
	}
	if !body.BalanceChange.IsPositive() {
		return types.Violation(types.ErrInvariantViolation, "mint of %s must be positive, got %s", body.Account, body.BalanceChange)
	}
	fresh, err := isNew(body.Account)
	if err != nil {
		return fmt.Errorf("reading account %s: %w", body.Account, err)
	}
	if !fresh {
		return types.Violation(types.ErrMintViolation, "mint target %s already exists", body.Account)
	}
	return nil
}

/*
CheckTokenOwners verifies that every update of a non-default token account
has an authorized ancestor owning that token id, ie the token contract took
part in (and is accountable for) the update. Authorizations themselves are
verified by the ledger.
*/
func CheckTokenOwners(tx *Transaction) error {
	t := tx.tree
	for _, id := range tx.Nodes() {
		acc := t.Update(id).AccountID()
		if acc.IsDefaultToken() {
			continue
		}
		if !hasTokenOwnerAncestor(t, id, acc.TokenID) {
			return types.Violation(types.ErrAuthorizationViolation, "update of %s is not approved by the token owner", acc)
		}
	}
	return nil
}

func hasTokenOwnerAncestor(t *Tree, id NodeID, tokenID types.TokenID) bool {
	for p := t.Parent(id); p != NoParent; p = t.Parent(p) {
		if u := t.Update(p); ownsToken(u, tokenID) && u.Authorization.Kind != types.AuthKindNone {
			return true
		}
	}
	return false
}

func ownsToken(u *types.AccountUpdate, tokenID types.TokenID) bool {
	owner := u.AccountID()
	return types.DeriveTokenID(owner.Address, owner.TokenID) == tokenID
}

// CheckInvariants runs all the checks a transaction must pass before its authorizations are verified.
func CheckInvariants(tx *Transaction, isNew IsNewFunc) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := CheckTokenOwners(tx); err != nil {
		return err
	}
	return CheckBalances(tx, isNew)
}
