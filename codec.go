package rsaledger

import (
	"fmt"
	"io"

	"github.com/go-errors/errors"
	"github.com/multiformats/go-multihash"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/cbor"
	"github.com/privacybydesign/rsaledger/rsakeys"
)

const encodingVersion = 1

var ErrMalformedChain = errors.New("malformed chain encoding")

type (
	chainRecord struct {
		Version int           `cbor:"version"`
		Blocks  []blockRecord `cbor:"blocks"`
	}

	blockRecord struct {
		Genesis bool                `cbor:"genesis"`
		Prev    *big.Int            `cbor:"prev,omitempty"`
		Tx      transactionRecord   `cbor:"tx"`
		Seed    *big.Int            `cbor:"seed"`
		Hash    multihash.Multihash `cbor:"hash"`
	}

	transactionRecord struct {
		E   *big.Int `cbor:"e"`
		N   *big.Int `cbor:"n"`
		M   *big.Int `cbor:"m"`
		Sig *big.Int `cbor:"sig"`
	}
)

// Save writes the chain to w as deterministic CBOR. Block hashes are stored as sha2-256
// multihashes.
func Save(w io.Writer, c *Chain) error {
	blocks := c.snapshot()
	record := chainRecord{Version: encodingVersion, Blocks: make([]blockRecord, len(blocks))}
	for i, b := range blocks {
		br, err := encodeBlock(b)
		if err != nil {
			return errors.WrapPrefix(err, fmt.Sprintf("failed to encode block %d", i), 0)
		}
		record.Blocks[i] = br
	}
	return cbor.NewEncoder(w).Encode(record)
}

func encodeBlock(b *Block) (blockRecord, error) {
	var digest [32]byte
	if b.hash.Sign() < 0 || b.hash.BitLen() > len(digest)*8 {
		return blockRecord{}, errors.Errorf("block hash %s does not fit a sha2-256 digest", b.hash)
	}
	hash, err := multihash.Encode(b.hash.FillBytes(digest[:]), multihash.SHA2_256)
	if err != nil {
		return blockRecord{}, err
	}
	prev, linked := b.previous.Hash()
	tx := b.tx
	return blockRecord{
		Genesis: !linked,
		Prev:    prev,
		Tx: transactionRecord{
			E:   tx.publicKey.E,
			N:   tx.publicKey.N,
			M:   tx.message,
			Sig: tx.signature,
		},
		Seed: b.seed,
		Hash: hash,
	}, nil
}

// Load reads a chain written by Save. The returned chain uses miner for further blocks and
// for verification. Load only checks that the encoding is well formed; callers should run
// Verify on the result.
func Load(r io.Reader, miner *Miner) (*Chain, error) {
	if miner == nil {
		miner = &Miner{}
	}
	if err := miner.params().Validate(); err != nil {
		return nil, err
	}

	var record chainRecord
	if err := cbor.NewDecoder(r).Decode(&record); err != nil {
		return nil, errors.WrapPrefix(err, "failed to decode chain", 0)
	}
	if record.Version != encodingVersion {
		return nil, errors.WrapPrefix(ErrMalformedChain, fmt.Sprintf("unsupported version %d", record.Version), 0)
	}
	if len(record.Blocks) == 0 {
		return nil, errors.WrapPrefix(ErrMalformedChain, "no blocks", 0)
	}

	blocks := make([]*Block, len(record.Blocks))
	for i, br := range record.Blocks {
		b, err := decodeBlock(br)
		if err != nil {
			return nil, errors.WrapPrefix(err, fmt.Sprintf("block %d", i), 0)
		}
		blocks[i] = b
	}
	return &Chain{blocks: blocks, miner: miner}, nil
}

func decodeBlock(br blockRecord) (*Block, error) {
	if br.Genesis != (br.Prev == nil) {
		return nil, errors.WrapPrefix(ErrMalformedChain, "genesis flag disagrees with previous hash", 0)
	}
	tr := br.Tx
	if tr.E == nil || tr.N == nil || tr.M == nil || tr.Sig == nil || br.Seed == nil {
		return nil, errors.WrapPrefix(ErrMalformedChain, "missing field", 0)
	}

	decoded, err := multihash.Decode(br.Hash)
	if err != nil {
		return nil, errors.WrapPrefix(ErrMalformedChain, err.Error(), 0)
	}
	if decoded.Code != multihash.SHA2_256 || len(decoded.Digest) != 32 {
		return nil, errors.WrapPrefix(ErrMalformedChain, fmt.Sprintf("unexpected hash %s of %d bytes", decoded.Name, len(decoded.Digest)), 0)
	}

	previous := NoPredecessor()
	if !br.Genesis {
		previous = LinkTo(br.Prev)
	}
	return &Block{
		previous: previous,
		tx:       restoreTransaction(rsakeys.NewPublicKey(tr.E, tr.N), tr.M, tr.Sig),
		seed:     br.Seed,
		hash:     new(big.Int).SetBytes(decoded.Digest),
	}, nil
}
