package rsaledger

import (
	"testing"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/internal/common"
	"github.com/privacybydesign/rsaledger/rsakeys"
)

const testKeyBits = 128

func init() {
	Logger.SetLevel(logrus.FatalLevel)
}

func testKey(t *testing.T, seed uint64) *rsakeys.PrivateKey {
	sk, err := rsakeys.Generate(common.NewSeededCPRNG(seed), testKeyBits, big.NewInt(rsakeys.DefaultPublicExponent), 0)
	require.NoError(t, err)
	return sk
}

func testTransaction(t *testing.T, seed uint64, message int64) *Transaction {
	tx, err := NewTransaction(big.NewInt(message), testKey(t, seed))
	require.NoError(t, err)
	return tx
}

func TestTransaction(t *testing.T) {
	sk := testKey(t, 1)
	m := big.NewInt(42)
	tx, err := NewTransaction(m, sk)
	require.NoError(t, err)
	require.True(t, tx.Verify())

	sig, err := sk.SignSlow(m)
	require.NoError(t, err)
	require.Zero(t, sig.Cmp(tx.Signature()))
	require.Zero(t, m.Cmp(tx.Message()))
	require.True(t, tx.PublicKey().Equal(&sk.PublicKey))
}

func TestTransactionKeepsKeySnapshot(t *testing.T) {
	sk := testKey(t, 2)
	m := big.NewInt(7)
	tx, err := NewTransaction(m, sk)
	require.NoError(t, err)

	sk.N.Add(sk.N, big.NewInt(2))
	m.SetInt64(8)
	require.True(t, tx.Verify())
	require.Equal(t, int64(7), tx.Message().Int64())

	tx.PublicKey().E.SetInt64(3)
	tx.Signature().SetInt64(0)
	require.True(t, tx.Verify())
}

func TestTransactionOutOfRange(t *testing.T) {
	sk := testKey(t, 3)
	_, err := NewTransaction(new(big.Int).Set(sk.N), sk)
	require.True(t, errors.Is(err, rsakeys.ErrMessageRange))
	_, err = NewTransaction(big.NewInt(-1), sk)
	require.True(t, errors.Is(err, rsakeys.ErrMessageRange))
	_, err = NewTransaction(nil, sk)
	require.True(t, errors.Is(err, rsakeys.ErrMessageRange))
}

func TestRestoredTransactionVerify(t *testing.T) {
	tx := testTransaction(t, 4, 100)
	pk := tx.PublicKey()

	forged := restoreTransaction(pk, tx.Message(), new(big.Int).Add(tx.Signature(), big.NewInt(1)))
	require.False(t, forged.Verify())

	wrongMessage := restoreTransaction(pk, big.NewInt(101), tx.Signature())
	require.False(t, wrongMessage.Verify())

	// Values outside [0, n) make verification fail instead of erroring
	outOfRange := restoreTransaction(pk, new(big.Int).Add(pk.N, big.NewInt(100)), tx.Signature())
	require.False(t, outOfRange.Verify())

	same := restoreTransaction(pk, tx.Message(), tx.Signature())
	require.True(t, same.Verify())
}

func TestTransactionString(t *testing.T) {
	tx := testTransaction(t, 5, 12345)
	require.Contains(t, tx.String(), "message: 12345")
	require.Contains(t, tx.String(), "publicExponent: 65537")
}
