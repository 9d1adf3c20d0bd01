package hash

import (
	"crypto"
	_ "crypto/sha256" // registers crypto.SHA256
	"fmt"
)

// SumHashes hashes the hashes, for hashing other data units, use hash.New() instead.
func SumHashes(hashAlgorithm crypto.Hash, hashes ...[]byte) []byte {
	hasher := hashAlgorithm.New()
	for _, hash := range hashes {
		hasher.Write(hash)
	}
	return hasher.Sum(nil)
}

/*
Sum returns the hash of the CBOR encoding of values. Unlike Hasher.Sum it
returns the encoding error instead of a possibly invalid hash value.
*/
func Sum(hashAlgorithm crypto.Hash, values ...any) ([]byte, error) {
	hasher := New(hashAlgorithm.New())
	for _, value := range values {
		hasher.Write(value)
	}
	res, err := hasher.Sum()
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	return res, nil
}
