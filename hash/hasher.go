package hash

import (
	"fmt"
	"hash"

	fxcbor "github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/alphabill-token-auth/cbor"
)

type Hasher interface {
	Write(any)
	WriteRaw([]byte)
	Reset()
	Sum() ([]byte, error)
	Size() int
}

/*
New creates "hash calculator" using given hash function.
Values written to the hash are encoded as CBOR before hashing.
*/
func New(h hash.Hash) *Hash {
	hsh := &Hash{h: h}
	hsh.Reset()
	return hsh
}

type Hash struct {
	h   hash.Hash
	enc *fxcbor.Encoder
	err error
}

/*
Write serializes argument as CBOR and adds it to the hash.
*/
func (h *Hash) Write(v any) {
	if h.err != nil {
		return
	}
	h.err = h.enc.Encode(v)
}

/*
WriteRaw adds the argument as is (ie raw bytes, without additional encoding) to the hash.
*/
func (h *Hash) WriteRaw(d []byte) {
	if h.err != nil {
		return
	}
	_, h.err = h.h.Write(d)
}

func (h *Hash) Reset() {
	h.h.Reset()
	h.enc, h.err = cbor.NewEncoder(h.h)
	if h.err != nil {
		h.err = fmt.Errorf("creating CBOR encoder: %w", h.err)
	}
}

func (h *Hash) Size() int {
	return h.h.Size()
}

/*
Sum returns the hash value calculated and first error (if any) that happened
during the hashing (in case of non-nil error the hash value is not valid).
*/
func (h Hash) Sum() ([]byte, error) {
	return h.h.Sum(nil), h.err
}
