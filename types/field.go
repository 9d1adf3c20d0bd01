package types

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alphabill-org/alphabill-token-auth/cbor"
)

// Field is the value of the single application state slot of an account.
type Field struct {
	v uint256.Int
}

func NewField(v uint64) *Field {
	f := &Field{}
	f.v.SetUint64(v)
	return f
}

func FieldFromUint256(v *uint256.Int) *Field {
	f := &Field{}
	f.v.Set(v)
	return f
}

func (f *Field) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&f.v)
}

func (f *Field) Eq(o *Field) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.v.Eq(&o.v)
}

func (f *Field) Copy() *Field {
	if f == nil {
		return nil
	}
	return FieldFromUint256(&f.v)
}

func (f *Field) String() string {
	if f == nil {
		return "<nil>"
	}
	return f.v.Dec()
}

// MarshalCBOR encodes the value as 32 byte big-endian byte string.
func (f *Field) MarshalCBOR() ([]byte, error) {
	b := f.v.Bytes32()
	return cbor.Marshal(b[:])
}

func (f *Field) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	if len(b) != 32 {
		return fmt.Errorf("invalid field encoding length %d", len(b))
	}
	f.v.SetBytes32(b)
	return nil
}

func (f *Field) MarshalText() ([]byte, error) {
	return []byte(f.v.Dec()), nil
}

func (f *Field) UnmarshalText(src []byte) error {
	return f.v.SetFromDecimal(string(src))
}
