// Package big contains a mostly API-compatible "math/big".Int that CBOR-marshals to and from
// a byte string holding its big-endian magnitude.
package big

import (
	cryptorand "crypto/rand"
	"fmt"
	"io"
	"math/big"
	"math/rand"

	"github.com/go-errors/errors"
	"github.com/privacybydesign/rsaledger/cbor"
)

// Int is an API-compatible "math/big".Int that CBOR-marshals to and from a byte string.
// Only supports non-negative integers when marshaling.
type Int big.Int

// MarshalCBOR implements cbor.Marshaler, encoding i.Bytes() as a CBOR byte string.
func (i *Int) MarshalCBOR() ([]byte, error) {
	if i.Sign() == -1 {
		return nil, errors.New("Marshaling negative integers is not supported")
	}
	return cbor.Marshal(i.Bytes())
}

// UnmarshalCBOR implements cbor.Unmarshaler. The input must be a CBOR byte string.
func (i *Int) UnmarshalCBOR(data []byte) error {
	var bts []byte
	if err := cbor.Unmarshal(data, &bts); err != nil {
		return errors.WrapPrefix(err, "CBOR item was not a byte string", 0)
	}
	i.SetBytes(bts)
	return nil
}

// RandInt wraps "crypto/rand".Int:
// returns a uniform random value in [0, max). It panics if max <= 0.
func RandInt(rnd io.Reader, max *Int) (*Int, error) {
	i, err := cryptorand.Int(rnd, max.Go())
	return Convert(i), err
}

// Convert from a "math/big".Int
func Convert(x *big.Int) *Int {
	return (*Int)(x)
}

// Convert to a "math/big".Int
func (i *Int) Go() *big.Int {
	return (*big.Int)(i)
}

// Copy returns a new Int holding the same value, or nil if i is nil.
func Copy(i *Int) *Int {
	if i == nil {
		return nil
	}
	return new(Int).Set(i)
}

// "math/big".Int API
// We are liberal with using the conversion functions above; these are inlined by the compiler.

func NewInt(x int64) *Int { return Convert(big.NewInt(x)) }

func (i *Int) Format(s fmt.State, ch rune)  { i.Go().Format(s, ch) }
func (i *Int) Bit(j int) uint               { return i.Go().Bit(j) }
func (i *Int) Bytes() []byte                { return i.Go().Bytes() }
func (i *Int) FillBytes(buf []byte) []byte  { return i.Go().FillBytes(buf) }
func (i *Int) BitLen() int                  { return i.Go().BitLen() }
func (i *Int) Int64() int64                 { return i.Go().Int64() }
func (i *Int) Uint64() uint64               { return i.Go().Uint64() }
func (i *Int) IsInt64() bool                { return i.Go().IsInt64() }
func (i *Int) Sign() int                    { return i.Go().Sign() }
func (i *Int) Cmp(y *Int) int               { return i.Go().Cmp(y.Go()) }
func (i *Int) ProbablyPrime(n int) bool     { return i.Go().ProbablyPrime(n) }
func (i *Int) String() string               { return i.Go().String() }
func (i *Int) Text(base int) string         { return i.Go().Text(base) }
func (i *Int) SetInt64(x int64) *Int        { return Convert(i.Go().SetInt64(x)) }
func (i *Int) SetUint64(x uint64) *Int      { return Convert(i.Go().SetUint64(x)) }
func (i *Int) Set(x *Int) *Int              { return Convert(i.Go().Set(x.Go())) }
func (i *Int) Abs(x *Int) *Int              { return Convert(i.Go().Abs(x.Go())) }
func (i *Int) Neg(x *Int) *Int              { return Convert(i.Go().Neg(x.Go())) }
func (i *Int) Add(x, y *Int) *Int           { return Convert(i.Go().Add(x.Go(), y.Go())) }
func (i *Int) Sub(x, y *Int) *Int           { return Convert(i.Go().Sub(x.Go(), y.Go())) }
func (i *Int) Mul(x, y *Int) *Int           { return Convert(i.Go().Mul(x.Go(), y.Go())) }
func (i *Int) Quo(x, y *Int) *Int           { return Convert(i.Go().Quo(x.Go(), y.Go())) }
func (i *Int) Rem(x, y *Int) *Int           { return Convert(i.Go().Rem(x.Go(), y.Go())) }
func (i *Int) Div(x, y *Int) *Int           { return Convert(i.Go().Div(x.Go(), y.Go())) }
func (i *Int) Mod(x, y *Int) *Int           { return Convert(i.Go().Mod(x.Go(), y.Go())) }
func (i *Int) SetBytes(buf []byte) *Int     { return Convert(i.Go().SetBytes(buf)) }
func (i *Int) Lsh(x *Int, n uint) *Int      { return Convert(i.Go().Lsh(x.Go(), n)) }
func (i *Int) Rsh(x *Int, n uint) *Int      { return Convert(i.Go().Rsh(x.Go(), n)) }
func (i *Int) Xor(x, y *Int) *Int           { return Convert(i.Go().Xor(x.Go(), y.Go())) }
func (i *Int) SetBit(x *Int, j int, b uint) *Int {
	return Convert(i.Go().SetBit(x.Go(), j, b))
}
func (i *Int) Exp(x, y, m *Int) *Int {
	return Convert(i.Go().Exp(x.Go(), y.Go(), m.Go()))
}
func (i *Int) Rand(rnd *rand.Rand, n *Int) *Int {
	return Convert(i.Go().Rand(rnd, n.Go()))
}
func (i *Int) GCD(x, y, a, b *Int) *Int {
	return Convert(i.Go().GCD(x.Go(), y.Go(), a.Go(), b.Go()))
}
func (i *Int) ModInverse(g, n *Int) *Int {
	return Convert(i.Go().ModInverse(g.Go(), n.Go()))
}
func (i *Int) SetString(s string, base int) (*Int, bool) {
	z, b := i.Go().SetString(s, base)
	return Convert(z), b
}
func (i *Int) DivMod(x, y, m *Int) (*Int, *Int) {
	z, w := i.Go().DivMod(x.Go(), y.Go(), m.Go())
	return Convert(z), Convert(w)
}
func (i *Int) QuoRem(x, y, r *Int) (*Int, *Int) {
	z, w := i.Go().QuoRem(x.Go(), y.Go(), r.Go())
	return Convert(z), Convert(w)
}
