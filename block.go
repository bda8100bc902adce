package rsaledger

import (
	"fmt"
	"strings"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/internal/common"
)

// PreviousHash is the link from a block to its predecessor. The zero value means that the
// block has no predecessor, which is only valid for the genesis block of a chain. Every
// integer, including 0, is a real link distinct from the zero value.
type PreviousHash struct {
	hash *big.Int
}

// NoPredecessor returns the link of a genesis block.
func NoPredecessor() PreviousHash {
	return PreviousHash{}
}

// LinkTo returns a link to a block with hash h. A nil h yields NoPredecessor().
func LinkTo(h *big.Int) PreviousHash {
	return PreviousHash{hash: big.Copy(h)}
}

// IsNone reports whether there is no predecessor.
func (p PreviousHash) IsNone() bool {
	return p.hash == nil
}

// Hash returns a copy of the predecessor's hash, and false if there is no predecessor.
func (p PreviousHash) Hash() (*big.Int, bool) {
	if p.hash == nil {
		return nil, false
	}
	return new(big.Int).Set(p.hash), true
}

// Equal reports whether both links point to the same hash, or both have no predecessor.
func (p PreviousHash) Equal(other PreviousHash) bool {
	if p.hash == nil || other.hash == nil {
		return p.hash == nil && other.hash == nil
	}
	return p.hash.Cmp(other.hash) == 0
}

func (p PreviousHash) String() string {
	if p.hash == nil {
		return "none"
	}
	return p.hash.String()
}

// FailureReason tells why a block or chain failed verification.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	// ReasonGenesisLink: the first block of a chain has a predecessor.
	ReasonGenesisLink
	// ReasonPreviousWork: the previous hash is not below the target.
	ReasonPreviousWork
	// ReasonHashMismatch: the stored hash is not the hash of the block contents.
	ReasonHashMismatch
	// ReasonInsufficientWork: the block hash is not below the target.
	ReasonInsufficientWork
	// ReasonBadSignature: the transaction signature does not verify.
	ReasonBadSignature
	// ReasonBrokenLink: the previous hash differs from the hash of the preceding block.
	ReasonBrokenLink
)

var reasonNames = map[FailureReason]string{
	ReasonNone:             "none",
	ReasonGenesisLink:      "genesis block has a predecessor",
	ReasonPreviousWork:     "previous hash lacks proof of work",
	ReasonHashMismatch:     "block hash mismatch",
	ReasonInsufficientWork: "block hash lacks proof of work",
	ReasonBadSignature:     "invalid transaction signature",
	ReasonBrokenLink:       "previous hash does not match preceding block",
}

func (r FailureReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("FailureReason(%d)", int(r))
}

// Block holds one transaction, the hash of the preceding block and a seed chosen such that
// the block hash has the required proof of work. Blocks are immutable; the tamper methods
// return modified copies for which Tampered() returns true.
type Block struct {
	previous PreviousHash
	tx       *Transaction
	seed     *big.Int
	hash     *big.Int

	attempts uint64
	tampered bool
}

// blockHash computes the sha256 hash of a block with the given seed. The previous hash is
// only included for linked blocks; the linked flag is part of the hashed encoding.
func blockHash(previous PreviousHash, tx *Transaction, seed *big.Int) *big.Int {
	values := make([]*big.Int, 0, 6)
	prev, linked := previous.Hash()
	if linked {
		values = append(values, prev)
	}
	values = append(values, tx.hashValues()...)
	values = append(values, seed)
	return common.HashCommit(values, linked)
}

// Check verifies the block on its own under params and returns the first failure found,
// or ReasonNone. It does not look at neighbouring blocks.
func (b *Block) Check(params *SystemParameters) FailureReason {
	target := params.Target()
	if prev, linked := b.previous.Hash(); linked && prev.Cmp(target) >= 0 {
		return ReasonPreviousWork
	}
	if blockHash(b.previous, b.tx, b.seed).Cmp(b.hash) != 0 {
		return ReasonHashMismatch
	}
	if b.hash.Cmp(target) >= 0 {
		return ReasonInsufficientWork
	}
	if !b.tx.Verify() {
		return ReasonBadSignature
	}
	return ReasonNone
}

// Verify reports whether Check finds no failure.
func (b *Block) Verify(params *SystemParameters) bool {
	return b.Check(params) == ReasonNone
}

func (b *Block) clone() *Block {
	c := *b
	c.seed = new(big.Int).Set(b.seed)
	c.hash = new(big.Int).Set(b.hash)
	c.tampered = true
	return &c
}

// WithFlippedHashBit returns a copy of the block in which bit i of the stored hash is
// toggled.
func (b *Block) WithFlippedHashBit(i int) *Block {
	c := b.clone()
	c.hash.SetBit(c.hash, i, c.hash.Bit(i)^1)
	return c
}

// WithPreviousHash returns a copy of the block with its link replaced by previous; the
// stored hash and seed are kept.
func (b *Block) WithPreviousHash(previous PreviousHash) *Block {
	c := b.clone()
	c.previous = previous
	return c
}

// PreviousHash returns the link to the preceding block.
func (b *Block) PreviousHash() PreviousHash {
	return b.previous
}

// Transaction returns the transaction of the block.
func (b *Block) Transaction() *Transaction {
	return b.tx
}

// Seed returns a copy of the seed.
func (b *Block) Seed() *big.Int {
	return new(big.Int).Set(b.seed)
}

// Hash returns a copy of the stored block hash.
func (b *Block) Hash() *big.Int {
	return new(big.Int).Set(b.hash)
}

// Attempts returns the number of seeds that were tried when the block was mined, or 0 if
// the block was loaded.
func (b *Block) Attempts() uint64 {
	return b.attempts
}

// Tampered reports whether the block was produced by one of the tamper methods.
func (b *Block) Tampered() bool {
	return b.tampered
}

func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString("Block:\n")
	fmt.Fprintf(&sb, "  previous_block_hash: %s\n", b.previous)
	fmt.Fprintf(&sb, "  block_hash: %s\n", b.hash)
	fmt.Fprintf(&sb, "  seed: %s\n", b.seed)
	fmt.Fprintf(&sb, "  transaction: %s", b.tx)
	return sb.String()
}
