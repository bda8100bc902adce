// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"github.com/go-errors/errors"
	"github.com/privacybydesign/rsaledger/big"
)

// Some utility code (mostly math stuff) useful in various places in this
// module.

// Often we need to refer to the same small constant big numbers, no point in
// creating them again and again.
var (
	bigZERO = big.NewInt(0)
	bigONE  = big.NewInt(1)
)

var (
	// ErrNoModInverse is returned when an inverse is requested for non-coprime inputs.
	ErrNoModInverse = errors.New("modular inverse does not exist")

	// ErrTimeout is returned by bounded searches that exhausted their budget.
	ErrTimeout = errors.New("search did not finish within its attempt or time budget")
)

// ExtendedGCD returns g, x, y such that a*x + b*y = g, where g = gcd(a, b)
// whenever a and b are not both negative. It uses Euclidean division, so every
// remainder is non-negative regardless of the signs of a and b.
func ExtendedGCD(a, b *big.Int) (g, x, y *big.Int) {
	a, b = new(big.Int).Set(a), new(big.Int).Set(b)
	x0, x1 := big.NewInt(1), big.NewInt(0)
	y0, y1 := big.NewInt(0), big.NewInt(1)
	q, r, tmp := new(big.Int), new(big.Int), new(big.Int)

	for b.Sign() != 0 {
		q.DivMod(a, b, r)
		a, b = b, new(big.Int).Set(r)

		// (x0, x1) = (x1, x0 - q*x1), likewise for y
		tmp.Mul(q, x1)
		x0, x1 = x1, new(big.Int).Sub(x0, tmp)
		tmp.Mul(q, y1)
		y0, y1 = y1, new(big.Int).Sub(y0, tmp)
	}
	return a, x0, y0
}

// ModInverse returns x in [0, n) such that a*x = 1 (mod n). It returns
// ErrNoModInverse if a and n are not coprime or n is not positive.
func ModInverse(a, n *big.Int) (*big.Int, error) {
	if n.Sign() <= 0 {
		return nil, errors.WrapPrefix(ErrNoModInverse, "modulus must be positive", 0)
	}
	g, x, _ := ExtendedGCD(a, n)
	if g.Cmp(bigONE) != 0 {
		// In this case, a and n aren't coprime and we cannot calculate
		// the inverse.
		return nil, errors.WrapPrefix(ErrNoModInverse, "gcd("+a.String()+", "+n.String()+") = "+g.String(), 0)
	}
	return x.Mod(x, n), nil
}

// ModExp computes base^exp mod m by square-and-multiply, reducing base modulo
// m first. It needs O(log exp) multiplications and is not constant time.
// The exponent must be non-negative and m positive.
func ModExp(base, exp, m *big.Int) *big.Int {
	if m.Cmp(bigONE) == 0 {
		return big.NewInt(0)
	}
	res := big.NewInt(1)
	b := new(big.Int).Mod(base, m)
	for i := 0; i < exp.BitLen(); i++ {
		if exp.Bit(i) == 1 {
			res.Mul(res, b).Mod(res, m)
		}
		b.Mul(b, b).Mod(b, m)
	}
	return res
}

// ModPow computes x^y mod m. The exponent (y) can be negative, in which case it
// uses the modular inverse to compute the result.
func ModPow(x, y, m *big.Int) (*big.Int, error) {
	if y.Sign() == -1 {
		t, err := ModInverse(x, m)
		if err != nil {
			return nil, err
		}
		return ModExp(t, new(big.Int).Neg(y), m), nil
	}
	return ModExp(x, y, m), nil
}

// Crt finds a number x (mod pa*pb) such that x = a (mod pa) and x = b (mod pb)
func Crt(a *big.Int, pa *big.Int, b *big.Int, pb *big.Int) (*big.Int, error) {
	g, s2, s1 := ExtendedGCD(pa, pb)
	if g.Cmp(bigONE) != 0 {
		return nil, errors.WrapPrefix(ErrNoModInverse, "CRT moduli are not coprime", 0)
	}
	result := new(big.Int).Add(
		new(big.Int).Mul(new(big.Int).Mul(a, s1), pb),
		new(big.Int).Mul(new(big.Int).Mul(b, s2), pa))

	n := new(big.Int).Mul(pa, pb)
	return result.Mod(result, n), nil
}

// IsCoprime reports whether gcd(a, b) = 1.
func IsCoprime(a, b *big.Int) bool {
	g, _, _ := ExtendedGCD(a, b)
	return g.Cmp(bigONE) == 0
}

// InRange reports whether 0 <= x < n.
func InRange(x, n *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(n) < 0
}
