package rsaledger

import (
	"math"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/internal/common"
)

// hardParameters make finding a block practically impossible.
func hardParameters() *SystemParameters {
	return &SystemParameters{HashBits: 256, DifficultyBits: 200}
}

func TestSystemParameters(t *testing.T) {
	p := DefaultSystemParameters
	require.NoError(t, p.Validate())
	assert.Equal(t, 249, p.Target().BitLen())
	assert.Equal(t, float64(256), p.ExpectedAttempts())

	start, width := p.seedRange()
	assert.Equal(t, 256, start.BitLen())
	assert.Zero(t, start.Cmp(width))

	err := (&SystemParameters{HashBits: 512, DifficultyBits: 8}).Validate()
	assert.True(t, errors.Is(err, ErrInvalidParameters))
	err = (&SystemParameters{HashBits: 256, DifficultyBits: 256}).Validate()
	assert.True(t, errors.Is(err, ErrInvalidParameters))
	assert.Equal(t, math.Ldexp(1, 200), hardParameters().ExpectedAttempts())
}

func TestMinerInvalidInput(t *testing.T) {
	tx := testTransaction(t, 20, 1)

	_, err := (&Miner{Params: &SystemParameters{HashBits: 128, DifficultyBits: 8}}).Genesis(tx)
	require.True(t, errors.Is(err, ErrInvalidParameters))

	_, err = (&Miner{}).Genesis(nil)
	require.Error(t, err)
	_, err = (&Miner{}).Next(nil, tx)
	require.Error(t, err)
}

func TestMinerDeterministic(t *testing.T) {
	tx := testTransaction(t, 21, 2)
	b1, err := (&Miner{Rand: common.NewSeededCPRNG(5)}).Genesis(tx)
	require.NoError(t, err)
	b2, err := (&Miner{Rand: common.NewSeededCPRNG(5)}).Genesis(tx)
	require.NoError(t, err)

	require.Zero(t, b1.Seed().Cmp(b2.Seed()))
	require.Zero(t, b1.Hash().Cmp(b2.Hash()))
	require.Equal(t, b1.Attempts(), b2.Attempts())
}

func TestMinerWorkers(t *testing.T) {
	params := &SystemParameters{HashBits: 256, DifficultyBits: 8, Workers: 4}
	miner := &Miner{Params: params}
	prev, err := miner.Genesis(testTransaction(t, 22, 3))
	require.NoError(t, err)
	require.True(t, prev.Verify(params))

	for i := int64(0); i < 5; i++ {
		b, err := miner.Next(prev, testTransaction(t, 22, 4+i))
		require.NoError(t, err)
		require.True(t, b.Verify(params))
		require.True(t, b.PreviousHash().Equal(LinkTo(prev.Hash())))
		prev = b
	}
}

func TestSplitRange(t *testing.T) {
	start, width := DefaultSystemParameters.seedRange()
	for _, n := range []int{1, 2, 3, 7} {
		ranges := splitRange(start, width, n)
		require.Len(t, ranges, n)

		next := new(big.Int).Set(start)
		for _, r := range ranges {
			require.Zero(t, r[0].Cmp(next))
			require.Equal(t, 1, r[1].Sign())
			next.Add(next, r[1])
		}
		require.Zero(t, next.Cmp(new(big.Int).Add(start, width)))
	}

	ranges := splitRange(big.NewInt(10), big.NewInt(11), 3)
	require.Equal(t, int64(10), ranges[0][0].Int64())
	require.Equal(t, int64(3), ranges[0][1].Int64())
	require.Equal(t, int64(13), ranges[1][0].Int64())
	require.Equal(t, int64(16), ranges[2][0].Int64())
	require.Equal(t, int64(5), ranges[2][1].Int64())
}

func TestMinerMaxAttempts(t *testing.T) {
	tx := testTransaction(t, 23, 5)
	for _, workers := range []int{0, 1, 4} {
		params := hardParameters()
		params.MaxAttempts = 50
		params.Workers = workers
		_, err := (&Miner{Params: params}).Genesis(tx)
		require.True(t, errors.Is(err, ErrTimeout), "workers: %d", workers)
	}
}

func TestMinerTimeout(t *testing.T) {
	tx := testTransaction(t, 24, 6)
	for _, workers := range []int{1, 3} {
		params := hardParameters()
		params.Timeout = 50 * time.Millisecond
		params.Workers = workers

		start := time.Now()
		_, err := (&Miner{Params: params}).Genesis(tx)
		require.True(t, errors.Is(err, ErrTimeout))
		require.Less(t, int64(time.Since(start)), int64(10*time.Second))
	}
}

func TestMinerStop(t *testing.T) {
	tx := testTransaction(t, 25, 7)

	closed := make(chan struct{})
	close(closed)
	_, err := (&Miner{Params: hardParameters(), Stop: closed}).Genesis(tx)
	require.True(t, errors.Is(err, ErrStopped))

	// A single send stops all workers
	stop := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		stop <- struct{}{}
	}()
	params := hardParameters()
	params.Workers = 4
	_, err = (&Miner{Params: params, Stop: stop}).Genesis(tx)
	require.True(t, errors.Is(err, ErrStopped))
}

func TestMinerStopUnused(t *testing.T) {
	// A stop channel that is never used does not prevent mining
	stop := make(chan struct{})
	b, err := (&Miner{Stop: stop}).Genesis(testTransaction(t, 26, 8))
	require.NoError(t, err)
	require.True(t, b.Verify(DefaultSystemParameters))
}
