// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rsaledger

import (
	"fmt"
	"math"
	"time"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/rsaledger/big"
)

// SystemParameters holds the proof-of-work parameters of a chain.
type SystemParameters struct {
	// HashBits is the size of block hashes and seeds; it must match sha256.
	HashBits uint
	// DifficultyBits is the number of leading zero bits a block hash needs.
	DifficultyBits uint

	// MaxAttempts bounds the number of seeds tried per block; 0 means no bound.
	MaxAttempts uint64
	// Workers is the number of goroutines searching disjoint seed ranges; values below 2
	// search in the calling goroutine.
	Workers int
	// Timeout bounds the wall-clock time of a single block search; 0 means no bound.
	Timeout time.Duration
}

const sha256Bits = 256

// DefaultSystemParameters holds the parameters of the reference ledger: sha256 hashes
// with 8 bits of proof of work, and unbounded sequential searches.
var DefaultSystemParameters = &SystemParameters{
	HashBits:       sha256Bits,
	DifficultyBits: 8,
}

// ErrInvalidParameters is returned when system parameters cannot be used for mining or
// verification.
var ErrInvalidParameters = errors.New("invalid system parameters")

// Validate checks that the parameters describe a satisfiable proof of work.
func (p *SystemParameters) Validate() error {
	if p.HashBits != sha256Bits {
		return errors.WrapPrefix(ErrInvalidParameters, fmt.Sprintf("hash size %d, expected %d", p.HashBits, sha256Bits), 0)
	}
	if p.DifficultyBits >= p.HashBits {
		return errors.WrapPrefix(ErrInvalidParameters, fmt.Sprintf("difficulty %d leaves no valid hashes", p.DifficultyBits), 0)
	}
	return nil
}

// Target returns 2^(HashBits-DifficultyBits); valid block hashes are strictly below it.
func (p *SystemParameters) Target() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), p.HashBits-p.DifficultyBits)
}

// seedRange returns the start and width of the seed space [2^(HashBits-1), 2^HashBits).
func (p *SystemParameters) seedRange() (start, width *big.Int) {
	start = new(big.Int).Lsh(big.NewInt(1), p.HashBits-1)
	return start, new(big.Int).Set(start)
}

// ExpectedAttempts returns 2^DifficultyBits, the mean number of seeds tried per block.
func (p *SystemParameters) ExpectedAttempts() float64 {
	return math.Ldexp(1, int(p.DifficultyBits))
}
