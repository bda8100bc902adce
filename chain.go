package rsaledger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
)

// Chain is an append-only sequence of blocks. The first block is the genesis block, which has
// no predecessor; every other block links to the hash of the block before it.
// A Chain is safe for concurrent use.
type Chain struct {
	mu     sync.RWMutex
	blocks []*Block
	miner  *Miner
}

// Verification is the outcome of Chain.Verify. If Valid is false, Position is the 0-based
// index of the first failing block and Reason tells why it failed.
type Verification struct {
	Valid    bool
	Position int
	Length   int
	Reason   FailureReason
}

func (v Verification) String() string {
	if v.Valid {
		return fmt.Sprintf("valid chain of %d blocks", v.Length)
	}
	return fmt.Sprintf("invalid block at position %d of a total of %d: %s", v.Position, v.Length, v.Reason)
}

// NewBlockChain creates a chain whose genesis block holds tx, mined with the default
// system parameters.
func NewBlockChain(tx *Transaction) (*Chain, error) {
	return NewBlockChainWithMiner(tx, &Miner{})
}

// NewBlockChainWithMiner creates a chain whose blocks are mined and verified using miner.
func NewBlockChainWithMiner(tx *Transaction, miner *Miner) (*Chain, error) {
	if miner == nil {
		miner = &Miner{}
	}
	genesis, err := miner.Genesis(tx)
	if err != nil {
		return nil, err
	}
	return &Chain{blocks: []*Block{genesis}, miner: miner}, nil
}

// AddBlock mines a block holding tx on top of the last block and appends it. Mining happens
// without holding the chain lock; if another block was appended in the meantime, the block
// is mined again on top of the new last block.
func (c *Chain) AddBlock(tx *Transaction) error {
	for {
		tail := c.Tail()
		b, err := c.miner.Next(tail, tx)
		if err != nil {
			return err
		}

		c.mu.Lock()
		if c.blocks[len(c.blocks)-1] == tail {
			c.blocks = append(c.blocks, b)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		Logger.Debug("chain grew while mining, mining again")
	}
}

// Verify checks that the first block has no predecessor, that every block passes
// Block.Check and that every block links to the hash of the block before it.
// It stops at the first failure.
func (c *Chain) Verify() Verification {
	blocks := c.snapshot()
	params := c.miner.params()
	l := len(blocks)

	fail := func(i int, reason FailureReason) Verification {
		v := Verification{Position: i, Length: l, Reason: reason}
		Logger.WithFields(logrus.Fields{
			"position": i,
			"length":   l,
			"reason":   reason.String(),
		}).Warn("invalid block in chain")
		return v
	}

	if l > 0 && !blocks[0].previous.IsNone() {
		return fail(0, ReasonGenesisLink)
	}
	for i, b := range blocks {
		if reason := b.Check(params); reason != ReasonNone {
			return fail(i, reason)
		}
		if i > 0 && !b.previous.Equal(LinkTo(blocks[i-1].hash)) {
			return fail(i, ReasonBrokenLink)
		}
	}
	return Verification{Valid: true, Length: l}
}

// snapshot returns the current blocks. Blocks are immutable and the slice is append-only,
// so the result can be read without holding the lock.
func (c *Chain) snapshot() []*Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[:len(c.blocks):len(c.blocks)]
}

// Len returns the number of blocks.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Block returns block i, or nil if i is out of range.
func (c *Chain) Block(i int) *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.blocks) {
		return nil
	}
	return c.blocks[i]
}

// Blocks returns a copy of the list of blocks.
func (c *Chain) Blocks() []*Block {
	blocks := c.snapshot()
	return append([]*Block(nil), blocks...)
}

// Tail returns the last block.
func (c *Chain) Tail() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// Params returns the system parameters used for mining and verification.
func (c *Chain) Params() *SystemParameters {
	return c.miner.params()
}

// WithBlock returns a new chain in which block i is replaced by b. The receiver is not
// modified. It is meant for inspecting how verification reacts to altered blocks.
func (c *Chain) WithBlock(i int, b *Block) (*Chain, error) {
	blocks := c.Blocks()
	if i < 0 || i >= len(blocks) {
		return nil, errors.Errorf("block index %d out of range [0, %d)", i, len(blocks))
	}
	if b == nil {
		return nil, errors.New("no block")
	}
	blocks[i] = b
	return &Chain{blocks: blocks, miner: c.miner}, nil
}

func (c *Chain) String() string {
	blocks := c.snapshot()
	strs := make([]string, len(blocks))
	for i, b := range blocks {
		strs[i] = b.String()
	}
	return "[\n" + strings.Join(strs, "\n,\n") + "\n]"
}
