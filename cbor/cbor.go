// Package cbor provides helper functions for encoding and decoding CBOR
// by wrapping functions provided by github.com/fxamacker/cbor.
//
//  1. CBOR is encoded using Core Deterministic Encoding defined in
//     RFC 8949, so that equal chains always encode to equal bytes.
//  2. CBOR decoder detects and rejects duplicate map keys and bounds
//     array sizes and nesting, since persisted chains are untrusted input.
//
// For more info, see:
//   - https://github.com/fxamacker/cbor
//   - https://tools.ietf.org/html/rfc8949
package cbor

import (
	"io"

	"github.com/fxamacker/cbor/v2" // imports as cbor
)

const (
	// MaxArrayElements bounds the number of blocks in a decoded chain.
	MaxArrayElements = 1024 * 256
	MaxMapPairs      = 64
	MaxNestedLevels  = 16
)

var (
	encOptions = cbor.EncOptions{
		// Core Deterministic Encoding, see https://datatracker.ietf.org/doc/html/rfc8949#section-4.2.1
		IndefLength:   cbor.IndefLengthForbidden,
		ShortestFloat: cbor.ShortestFloat16,
		NaNConvert:    cbor.NaNConvert7e00,
		InfConvert:    cbor.InfConvertFloat16,
		Sort:          cbor.SortCoreDeterministic,

		// Big integers are byte strings of their own, never tagged bignums
		TagsMd: cbor.TagsForbidden,
	}

	decOptions = cbor.DecOptions{
		IndefLength: cbor.IndefLengthForbidden,

		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: MaxArrayElements,
		MaxMapPairs:      MaxMapPairs,
		MaxNestedLevels:  MaxNestedLevels,

		TagsMd:  cbor.TagsForbidden,
		TimeTag: cbor.DecTagIgnored,

		// Unknown fields are allowed so that later format versions can add them
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}

	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = encOptions.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = decOptions.DecMode(); err != nil {
		panic(err)
	}
}

// Marshal encodes src into a CBOR-encoded byte slice.
func Marshal(src interface{}) ([]byte, error) {
	return encMode.Marshal(src)
}

// Unmarshal decodes CBOR in data into dst.
func Unmarshal(data []byte, dst interface{}) error {
	return decMode.Unmarshal(data, dst)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
