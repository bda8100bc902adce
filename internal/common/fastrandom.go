package common

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/privacybydesign/rsaledger/big"
)

var globalCprng *CPRNG

// CPRNG is a simple thread-safe cryptographically secure pseudo-random number generator.
// Implemented with AES in counter mode with the seed as key and an
// atomic uint64 as counter. Two CPRNGs with the same seed produce the same stream,
// which makes them suitable as reproducible randomness sources for key and block generation.
type CPRNG struct {
	block   cipher.Block
	counter uint64
}

func NewCPRNG(seed *[32]byte) (*CPRNG, error) {
	c, err := aes.NewCipher(seed[:])
	if err != nil {
		return nil, err
	}
	return &CPRNG{
		block:   c,
		counter: 0,
	}, nil
}

// NewSeededCPRNG returns a CPRNG whose seed is derived from a small integer, for tests and
// reproducible demonstrations. Never use it for real keys.
func NewSeededCPRNG(seed uint64) *CPRNG {
	var key [32]byte
	binary.BigEndian.PutUint64(key[24:], seed)
	c, err := NewCPRNG(&key)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize CPRNG: %v", err)) // AES-256 accepts any 32-byte key
	}
	return c
}

func init() {
	var seed [32]byte
	_, err := rand.Reader.Read(seed[:])
	if err != nil {
		panic(fmt.Sprintf("Failed to generate seed for CPRNG: %v", err))
	}
	cprng, err := NewCPRNG(&seed)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize CPRNG: %v", err))
	}
	globalCprng = cprng
}

// FastReader returns the process-wide CPRNG, seeded from crypto/rand at startup.
func FastReader() *CPRNG {
	return globalCprng
}

func (c *CPRNG) Read(buf []byte) (n int, err error) {
	var pt, ct [16]byte
	n = len(buf)
	if n == 0 {
		return
	}

	// Number of blocks required
	nBlocks := uint64(((len(buf) - 1) / 16) + 1)

	// Atomically increment counter by the number of blocks and set iv to
	// the first available block.
	iv := atomic.AddUint64(&c.counter, nBlocks) - nBlocks
	for {
		binary.LittleEndian.PutUint64(pt[:], iv)
		iv++

		// Still 16 bytes to go?  Then encrypt directly into buf.
		if len(buf) >= 16 {
			c.block.Encrypt(buf, pt[:])
			buf = buf[16:]
			continue
		}
		if len(buf) == 0 {
			break
		}

		// Otherwise, encrypt into ct and copy into buf.
		c.block.Encrypt(ct[:], pt[:])
		copy(buf, ct[:len(buf)])
		break
	}
	return
}

// RandomInRange returns a uniformly random value in [lo, lo+width) read from rnd.
func RandomInRange(rnd io.Reader, lo, width *big.Int) (*big.Int, error) {
	r, err := big.RandInt(rnd, width)
	if err != nil {
		return nil, err
	}
	return r.Add(r, lo), nil
}
