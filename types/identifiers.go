package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	// Address identifies an account owner (a key pair or a contract).
	Address = common.Address

	// TokenID identifies the token a balance is denominated in.
	TokenID = common.Hash

	// AccountID is the (address, token id) pair; the same address holds
	// independent accounts for every token id.
	AccountID struct {
		_       struct{} `cbor:",toarray"`
		Address Address
		TokenID TokenID
	}
)

// DefaultTokenID is the native token of the ledger, fees are paid in it.
var DefaultTokenID = TokenID{31: 1}

func NewAccountID(address Address, tokenID TokenID) AccountID {
	return AccountID{Address: address, TokenID: tokenID}
}

/*
DeriveTokenID returns the id of the token owned by the account (owner, parent).
Only the owner account may approve updates of accounts with the derived id.
*/
func DeriveTokenID(owner Address, parent TokenID) TokenID {
	return crypto.Keccak256Hash(owner.Bytes(), parent.Bytes())
}

// IsDefaultToken returns true when the account holds the native token.
func (id AccountID) IsDefaultToken() bool {
	return id.TokenID == DefaultTokenID
}

func (id AccountID) Eq(other AccountID) bool {
	return id.Address == other.Address && id.TokenID == other.TokenID
}

// Key returns the byte representation used as storage key.
func (id AccountID) Key() []byte {
	key := make([]byte, 0, common.AddressLength+common.HashLength)
	key = append(key, id.Address.Bytes()...)
	return append(key, id.TokenID.Bytes()...)
}

func (id AccountID) String() string {
	if id.IsDefaultToken() {
		return id.Address.Hex()
	}
	return fmt.Sprintf("%s/%s", id.Address.Hex(), id.TokenID.TerminalString())
}
