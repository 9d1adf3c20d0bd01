package attest

import (
	"fmt"

	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

/*
Sign signs every update of tx marked for signature authorization whose
address has a key in keys. Updates without a matching key are left
unsigned, the ledger rejects them.
*/
func Sign(tx *transaction.Transaction, keys ...*KeyPair) (signed int, _ error) {
	msg, err := tx.Hash()
	if err != nil {
		return 0, fmt.Errorf("calculating transaction hash: %w", err)
	}
	byAddr := make(map[types.Address]*KeyPair, len(keys))
	for _, k := range keys {
		byAddr[k.Address()] = k
	}
	for _, id := range tx.Nodes() {
		u := tx.Update(id)
		if u.Authorization.Kind != types.AuthKindSignature {
			continue
		}
		k, ok := byAddr[u.AccountID().Address]
		if !ok {
			continue
		}
		sig, err := k.SignHash(msg)
		if err != nil {
			return signed, fmt.Errorf("signing update %d of %s: %w", id, u.AccountID(), err)
		}
		u.Authorization.Data = sig
		signed++
	}
	return signed, nil
}
