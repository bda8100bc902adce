// Package rsakeys implements textbook RSA signing keys on top of the arithmetic in
// internal/common: key generation with CRT parameters, CRT and direct signing,
// and verification.
//
// No padding scheme is applied to messages, so signatures are malleable and
// vulnerable to the usual attacks on unpadded RSA; the arithmetic is not constant time.
// The package exists to sign ledger transactions whose messages are integers.
package rsakeys

import (
	"fmt"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/internal/common"
)

type (
	// PublicKey is the public subset of a key pair: the exponent and the modulus.
	PublicKey struct {
		E *big.Int `cbor:"e"` // Public exponent e
		N *big.Int `cbor:"n"` // Modulus n = p*q
	}

	// PrivateKey is an RSA key pair including the parameters for CRT signing.
	PrivateKey struct {
		PublicKey

		P    *big.Int // Prime p
		Q    *big.Int // Prime q
		D    *big.Int // d = e^-1 mod lcm(p-1, q-1)
		DP   *big.Int // d mod (p-1)
		DQ   *big.Int // d mod (q-1)
		QInv *big.Int // q^-1 mod p
	}
)

const (
	// DefaultKeyLength is the modulus size in bits used by GenerateKeyPair callers that do
	// not choose one.
	DefaultKeyLength = 2048
	// DefaultPublicExponent is 2^16 + 1.
	DefaultPublicExponent = 65537
)

var (
	Logger = logrus.StandardLogger()

	// ErrMessageRange is returned when a message or signature is not in [0, n).
	ErrMessageRange = errors.New("value out of range [0, n)")
	// ErrInvalidExponent is returned for public exponents that can never satisfy
	// gcd(e, p-1) = 1, i.e. even exponents and exponents below 3.
	ErrInvalidExponent = errors.New("public exponent must be odd and at least 3")
	// ErrInvalidKeyLength is returned for moduli that are too small or of odd length.
	ErrInvalidKeyLength = errors.New("key length must be even and at least 16 bits")

	ErrNoModInverse = common.ErrNoModInverse
	ErrTimeout      = common.ErrTimeout
)

// NewPublicKey returns a public key with copies of e and n.
func NewPublicKey(e, n *big.Int) *PublicKey {
	return &PublicKey{E: big.Copy(e), N: big.Copy(n)}
}

// Copy returns a deep copy of the public key, so that later changes to pk do not affect it.
func (pk *PublicKey) Copy() *PublicKey {
	return NewPublicKey(pk.E, pk.N)
}

// Equal reports whether both keys have the same exponent and modulus.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.E.Cmp(other.E) == 0 && pk.N.Cmp(other.N) == 0
}

func (pk *PublicKey) String() string {
	return fmt.Sprintf("(e: %s, n: %s)", pk.E, pk.N)
}

// Public returns a snapshot of the public part of the key pair.
func (sk *PrivateKey) Public() *PublicKey {
	return sk.PublicKey.Copy()
}

// Validate checks the invariants between the key pair components:
// n = p*q, gcd(e, p-1) = gcd(e, q-1) = 1, e*d = 1 (mod lcm(p-1, q-1)),
// the CRT exponents and qInv*q = 1 (mod p).
func (sk *PrivateKey) Validate() error {
	if sk.E == nil || sk.N == nil || sk.P == nil || sk.Q == nil ||
		sk.D == nil || sk.DP == nil || sk.DQ == nil || sk.QInv == nil {
		return errors.New("incomplete private key")
	}
	if !sk.P.ProbablyPrime(40) {
		return errors.New("P is not prime")
	}
	if !sk.Q.ProbablyPrime(40) {
		return errors.New("Q is not prime")
	}
	if new(big.Int).Mul(sk.P, sk.Q).Cmp(sk.N) != 0 {
		return errors.New("N is not P*Q")
	}

	pMinus1 := new(big.Int).Sub(sk.P, big.NewInt(1))
	qMinus1 := new(big.Int).Sub(sk.Q, big.NewInt(1))
	if !common.IsCoprime(sk.E, pMinus1) || !common.IsCoprime(sk.E, qMinus1) {
		return errors.New("E is not coprime to P-1 and Q-1")
	}

	lambda, err := carmichael(pMinus1, qMinus1)
	if err != nil {
		return err
	}
	ed := new(big.Int).Mul(sk.E, sk.D)
	if ed.Mod(ed, lambda).Cmp(big.NewInt(1)) != 0 {
		return errors.New("E*D is not 1 modulo lcm(P-1, Q-1)")
	}
	if new(big.Int).Mod(sk.D, pMinus1).Cmp(sk.DP) != 0 {
		return errors.New("Incompatible values for D and DP")
	}
	if new(big.Int).Mod(sk.D, qMinus1).Cmp(sk.DQ) != 0 {
		return errors.New("Incompatible values for D and DQ")
	}
	qqInv := new(big.Int).Mul(sk.Q, sk.QInv)
	if qqInv.Mod(qqInv, sk.P).Cmp(big.NewInt(1)) != 0 {
		return errors.New("QInv is not the inverse of Q modulo P")
	}
	return nil
}

// carmichael returns lcm(p-1, q-1) = (p-1)(q-1) / gcd(p-1, q-1).
func carmichael(pMinus1, qMinus1 *big.Int) (*big.Int, error) {
	phi := new(big.Int).Mul(pMinus1, qMinus1)
	g, _, _ := common.ExtendedGCD(pMinus1, qMinus1)
	if g.Sign() == 0 {
		return nil, errors.New("P-1 and Q-1 are both zero")
	}
	lambda, rem := new(big.Int).QuoRem(phi, g, new(big.Int))
	if rem.Sign() != 0 {
		// unreachable: the gcd divides both factors
		panic("gcd(p-1, q-1) does not divide (p-1)(q-1)")
	}
	return lambda, nil
}
