package rsakeys

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/internal/common"
)

const minPrimeBits = 8

// GenerateKeyPair generates a key pair with a modulus of bits bits and public exponent e,
// reading randomness from crypto/rand and retrying until suitable primes are found.
func GenerateKeyPair(bits int, e *big.Int) (*PrivateKey, error) {
	return Generate(rand.Reader, bits, e, 0)
}

// Generate generates a key pair with a modulus of exactly bits bits and public exponent e.
// All randomness is read from rnd, so a deterministic reader yields a deterministic key.
// If maxAttempts is positive, at most that many prime pairs are drawn before ErrTimeout is
// returned; zero means no bound.
func Generate(rnd io.Reader, bits int, e *big.Int, maxAttempts int) (*PrivateKey, error) {
	if bits < 2*minPrimeBits || bits%2 != 0 {
		return nil, errors.WrapPrefix(ErrInvalidKeyLength, fmt.Sprintf("%d bits", bits), 0)
	}
	if err := checkExponent(e); err != nil {
		return nil, err
	}
	k := uint(bits / 2)
	one := big.NewInt(1)

	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		p, q, err := ChoosePrimes(rnd, e, k, 1)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			return nil, err
		}

		pMinus1 := new(big.Int).Sub(p, one)
		qMinus1 := new(big.Int).Sub(q, one)
		lambda, err := carmichael(pMinus1, qMinus1)
		if err != nil {
			return nil, err
		}

		d, err := common.ModInverse(e, lambda)
		if err != nil {
			Logger.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Debug("rsakeys: no private exponent, resampling primes")
			continue
		}
		qInv, err := common.ModInverse(q, p)
		if err != nil {
			// p == q
			Logger.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Debug("rsakeys: no CRT coefficient, resampling primes")
			continue
		}

		sk := &PrivateKey{
			PublicKey: PublicKey{E: new(big.Int).Set(e), N: new(big.Int).Mul(p, q)},
			P:         p,
			Q:         q,
			D:         d,
			DP:        new(big.Int).Mod(d, pMinus1),
			DQ:        new(big.Int).Mod(d, qMinus1),
			QInv:      qInv,
		}
		Logger.WithFields(logrus.Fields{"bits": bits, "attempts": attempt}).Debug("rsakeys: generated key pair")
		return sk, nil
	}

	return nil, errors.WrapPrefix(ErrTimeout, fmt.Sprintf("no key pair after %d attempts", maxAttempts), 0)
}

// ChoosePrimes draws two independent random primes p and q of exactly k bits each, such that
// gcd(p-1, e) = gcd(q-1, e) = 1 and p*q has exactly 2k bits. Pairs are redrawn until these
// conditions hold; if maxAttempts is positive at most that many pairs are drawn before
// ErrTimeout is returned.
func ChoosePrimes(rnd io.Reader, e *big.Int, k uint, maxAttempts int) (p, q *big.Int, err error) {
	if k < minPrimeBits {
		return nil, nil, errors.WrapPrefix(ErrInvalidKeyLength, fmt.Sprintf("%d-bit primes", k), 0)
	}
	if err = checkExponent(e); err != nil {
		return nil, nil, err
	}
	one := big.NewInt(1)
	tmp := new(big.Int)

	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		if p, err = common.RandomPrime(rnd, k); err != nil {
			return nil, nil, err
		}
		if q, err = common.RandomPrime(rnd, k); err != nil {
			return nil, nil, err
		}

		if !common.IsCoprime(tmp.Sub(p, one), e) || !common.IsCoprime(tmp.Sub(q, one), e) {
			continue
		}
		// Both primes near 2^(k-1) give a product of only 2k-1 bits
		if tmp.Mul(p, q).BitLen() != int(2*k) {
			continue
		}
		return p, q, nil
	}

	return nil, nil, errors.WrapPrefix(ErrTimeout, fmt.Sprintf("no suitable primes after %d attempts", maxAttempts), 0)
}

func checkExponent(e *big.Int) error {
	if e == nil || e.Cmp(big.NewInt(3)) < 0 || e.Bit(0) == 0 {
		return ErrInvalidExponent
	}
	return nil
}
