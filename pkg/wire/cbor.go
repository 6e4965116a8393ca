package wire

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Bignum is a math/big.Int wrapper with CBOR (de)serialization, used by
// every persisted-state struct that would otherwise need base64-over-JSON
// to carry a bignum over JSON — CBOR carries byte strings natively, so no
// base64 step is needed here.
type Bignum struct {
	*big.Int
}

// NewBignum wraps v, or nil if v is nil.
func NewBignum(v *big.Int) Bignum {
	if v == nil {
		return Bignum{}
	}
	return Bignum{new(big.Int).Set(v)}
}

// MarshalCBOR implements cbor.Marshaler as the big-endian byte string of
// the wrapped value's absolute value (the sign is not encoded).
func (b Bignum) MarshalCBOR() ([]byte, error) {
	if b.Int == nil {
		return cbor.Marshal([]byte{})
	}
	return cbor.Marshal(b.Int.Bytes())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (b *Bignum) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Int = new(big.Int).SetBytes(raw)
	return nil
}

var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// MarshalConfig encodes any persisted-state container (e.g. dkg.Config) to
// canonical CBOR.
func MarshalConfig(v interface{}) ([]byte, error) {
	return cborMode.Marshal(v)
}

// UnmarshalConfig decodes a persisted-state container from CBOR.
func UnmarshalConfig(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
