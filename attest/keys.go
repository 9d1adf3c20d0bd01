/*
Package attest produces and verifies the authorizations of account updates:
secp256k1 signatures over the transaction hash and method proofs over the
commitment of the subtree a contract method produced.
*/
package attest

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

// KeyPair is the secp256k1 key of an account owner.
type KeyPair struct {
	priv *ecdsa.PrivateKey
}

func GenerateKey() (*KeyPair, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyFromBase58 decodes base58 encoded 32 byte private key.
func KeyFromBase58(s string) (*KeyPair, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decoding base58 key: %w", err)
	}
	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// EncodeBase58 returns the private key in the form KeyFromBase58 accepts.
func (k *KeyPair) EncodeBase58() string {
	return base58.Encode(crypto.FromECDSA(k.priv))
}

func (k *KeyPair) Address() types.Address {
	return crypto.PubkeyToAddress(k.priv.PublicKey)
}

// SignHash signs 32 byte hash, the signature is in the [R || S || V] format.
func (k *KeyPair) SignHash(hash []byte) ([]byte, error) {
	return crypto.Sign(hash, k.priv)
}

// String returns the address, never the private key.
func (k *KeyPair) String() string {
	return k.Address().Hex()
}
