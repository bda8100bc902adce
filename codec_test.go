package rsaledger

import (
	"bytes"
	"testing"

	"github.com/go-errors/errors"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/cbor"
)

func saveChain(t *testing.T, c *Chain) []byte {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, c))
	return buf.Bytes()
}

func encodeRecord(t *testing.T, record chainRecord) []byte {
	bts, err := cbor.Marshal(record)
	require.NoError(t, err)
	return bts
}

func TestSaveLoad(t *testing.T) {
	c := buildChain(t, 5, nil)
	bts := saveChain(t, c)

	loaded, err := Load(bytes.NewReader(bts), nil)
	require.NoError(t, err)
	require.Equal(t, Verification{Valid: true, Length: 5}, loaded.Verify())

	for i, b := range c.Blocks() {
		l := loaded.Block(i)
		require.True(t, l.PreviousHash().Equal(b.PreviousHash()))
		require.Zero(t, l.Hash().Cmp(b.Hash()))
		require.Zero(t, l.Seed().Cmp(b.Seed()))
		require.Zero(t, l.Transaction().Message().Cmp(b.Transaction().Message()))
		require.Zero(t, l.Transaction().Signature().Cmp(b.Transaction().Signature()))
		require.True(t, l.Transaction().PublicKey().Equal(b.Transaction().PublicKey()))
		require.Zero(t, l.Attempts())
	}

	// Encoding is deterministic
	require.Equal(t, bts, saveChain(t, loaded))

	// Loaded chains can be extended
	require.NoError(t, loaded.AddBlock(testTransaction(t, 500, 5)))
	require.Equal(t, Verification{Valid: true, Length: 6}, loaded.Verify())
}

func TestSaveStoresMultihash(t *testing.T) {
	c := buildChain(t, 2, nil)
	var record chainRecord
	require.NoError(t, cbor.Unmarshal(saveChain(t, c), &record))

	require.Equal(t, encodingVersion, record.Version)
	require.Len(t, record.Blocks, 2)
	require.True(t, record.Blocks[0].Genesis)
	require.Nil(t, record.Blocks[0].Prev)
	require.False(t, record.Blocks[1].Genesis)
	require.Zero(t, record.Blocks[1].Prev.Cmp(c.Block(0).Hash()))

	for i, br := range record.Blocks {
		digest := c.Block(i).Hash().FillBytes(make([]byte, 32))
		require.Equal(t, append([]byte{0x12, 0x20}, digest...), []byte(br.Hash))
	}
}

func TestLoadDetectsTamperedBytes(t *testing.T) {
	c := buildChain(t, 5, nil)
	bts := saveChain(t, c)

	// Flip the least significant bit of the persisted hash of block 2
	digest := c.Block(2).Hash().FillBytes(make([]byte, 32))
	idx := bytes.Index(bts, append([]byte{0x12, 0x20}, digest...))
	require.NotEqual(t, -1, idx)
	tampered := append([]byte(nil), bts...)
	tampered[idx+2+31] ^= 1

	loaded, err := Load(bytes.NewReader(tampered), nil)
	require.NoError(t, err)
	require.Equal(t, Verification{Position: 2, Length: 5, Reason: ReasonHashMismatch}, loaded.Verify())
}

func TestLoadTamperedChain(t *testing.T) {
	c := buildChain(t, 4, nil)
	tampered, err := c.WithBlock(1, c.Block(1).WithFlippedHashBit(0))
	require.NoError(t, err)

	loaded, err := Load(bytes.NewReader(saveChain(t, tampered)), nil)
	require.NoError(t, err)
	require.Equal(t, Verification{Position: 1, Length: 4, Reason: ReasonHashMismatch}, loaded.Verify())

	relinked, err := c.WithBlock(0, c.Block(0).WithPreviousHash(LinkTo(big.NewInt(0))))
	require.NoError(t, err)
	loaded, err = Load(bytes.NewReader(saveChain(t, relinked)), nil)
	require.NoError(t, err)
	require.Equal(t, Verification{Position: 0, Length: 4, Reason: ReasonGenesisLink}, loaded.Verify())
}

func TestLoadRejectsMalformed(t *testing.T) {
	c := buildChain(t, 2, nil)
	valid := func() chainRecord {
		var record chainRecord
		require.NoError(t, cbor.Unmarshal(saveChain(t, c), &record))
		return record
	}

	_, err := Load(bytes.NewReader([]byte{0xff, 0x00, 0x01}), nil)
	require.Error(t, err)

	record := valid()
	record.Version = 2
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))

	record = valid()
	record.Blocks = nil
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))

	record = valid()
	record.Blocks[0].Prev = big.NewInt(0)
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))

	record = valid()
	record.Blocks[1].Genesis = true
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))

	record = valid()
	record.Blocks[1].Seed = nil
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))

	record = valid()
	record.Blocks[1].Tx.Sig = nil
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))

	record = valid()
	sha1, err := multihash.Sum([]byte("block"), multihash.SHA1, -1)
	require.NoError(t, err)
	record.Blocks[1].Hash = sha1
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))

	record = valid()
	record.Blocks[1].Hash = []byte{0x12, 0x20, 0x01}
	_, err = Load(bytes.NewReader(encodeRecord(t, record)), nil)
	require.True(t, errors.Is(err, ErrMalformedChain))
}

func TestLoadInvalidParameters(t *testing.T) {
	c := buildChain(t, 1, nil)
	_, err := Load(bytes.NewReader(saveChain(t, c)), &Miner{Params: &SystemParameters{HashBits: 256, DifficultyBits: 300}})
	require.True(t, errors.Is(err, ErrInvalidParameters))
}
