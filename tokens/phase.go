package tokens

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

// Phase is the lifecycle stage of a token contract account.
type Phase uint8

const (
	PhaseUninitialized Phase = iota
	PhaseDeployed
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseDeployed:
		return "deployed"
	case PhaseActive:
		return "active"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

/*
PhaseOf returns the phase of the contract account: deploy installs the
verification key, init sets the state slot (and mints the supply).
*/
func PhaseOf(acc *types.Account) Phase {
	switch {
	case !acc.IsContract():
		return PhaseUninitialized
	case acc.AppState == nil:
		return PhaseDeployed
	default:
		return PhaseActive
	}
}

/*
VerificationKey returns the key identifying the methods of the named
contract kind. Proofs are checked against it by the attest package.
*/
func VerificationKey(contractName string) []byte {
	return crypto.Keccak256([]byte("verification key"), []byte(contractName))
}
