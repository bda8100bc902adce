package rsakeys

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/internal/common"
)

// Sign signs message using the Chinese remainder theorem:
//
//	m1 = m^dP mod p, m2 = m^dQ mod q
//	h  = qInv * (m1 - m2) mod p
//	s  = m2 + h*q mod n
//
// The message must be in [0, n); otherwise ErrMessageRange is returned.
func (sk *PrivateKey) Sign(message *big.Int) (*big.Int, error) {
	if !common.InRange(message, sk.N) {
		return nil, outOfRange("message", message)
	}
	m1 := common.ModExp(message, sk.DP, sk.P)
	m2 := common.ModExp(message, sk.DQ, sk.Q)

	h := new(big.Int).Sub(m1, m2)
	h.Mod(h, sk.P)
	h.Mul(h, sk.QInv).Mod(h, sk.P)

	s := h.Mul(h, sk.Q)
	s.Add(s, m2)
	return s.Mod(s, sk.N), nil
}

// SignSlow signs message as m^d mod n, without the CRT. It returns the same signature as Sign.
func (sk *PrivateKey) SignSlow(message *big.Int) (*big.Int, error) {
	if !common.InRange(message, sk.N) {
		return nil, outOfRange("message", message)
	}
	return common.ModExp(message, sk.D, sk.N), nil
}

// Unsign recovers the message from a signature by computing signature^e mod n.
func (pk *PublicKey) Unsign(signature *big.Int) (*big.Int, error) {
	if !common.InRange(signature, pk.N) {
		return nil, outOfRange("signature", signature)
	}
	return common.ModExp(signature, pk.E, pk.N), nil
}

// Verify reports whether signature is a signature on message under this key, i.e. whether
// message == signature^e mod n. A message or signature outside [0, n) is an error
// rather than a failed verification.
func (pk *PublicKey) Verify(message, signature *big.Int) (bool, error) {
	if !common.InRange(message, pk.N) {
		return false, outOfRange("message", message)
	}
	unsigned, err := pk.Unsign(signature)
	if err != nil {
		return false, err
	}
	return unsigned.Cmp(message) == 0, nil
}

func outOfRange(what string, x *big.Int) error {
	if x == nil {
		return errors.WrapPrefix(ErrMessageRange, what+" is nil", 1)
	}
	return errors.WrapPrefix(ErrMessageRange, what+" "+x.String(), 1)
}
