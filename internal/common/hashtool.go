package common

import (
	"crypto/sha256"
	"encoding/asn1"

	"github.com/privacybydesign/rsaledger/big"

	gobig "math/big"
)

// HashCommit computes the sha256 hash over the asn1 representation of a slice
// of big integers and returns the positive big integer that the hash represents.
// The encoded sequence starts with the linked flag and the number of values, so
// that hashes of slices with and without a leading link value never collide.
// Nil values are not allowed.
func HashCommit(values []*big.Int, linked bool) *big.Int {
	tmp := make([]interface{}, len(values)+2)
	tmp[0] = linked
	tmp[1] = gobig.NewInt(int64(len(values)))
	for i, v := range values {
		tmp[i+2] = v.Go()
	}
	r, err := asn1.Marshal(tmp)
	if err != nil {
		panic(err) // Marshal should never error, so panic if it does
	}

	sha := sha256.Sum256(r)
	return new(big.Int).SetBytes(sha[:])
}
