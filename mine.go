package rsaledger

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/internal/common"
)

var (
	ErrTimeout = common.ErrTimeout
	ErrStopped = errors.New("proof-of-work search stopped")
)

// Miner creates blocks by searching for seeds that give the block hash the proof of work
// required by Params.
type Miner struct {
	// Params defaults to DefaultSystemParameters if nil.
	Params *SystemParameters
	// Rand is the source of seeds; it defaults to a process-wide AES-CTR generator seeded
	// from crypto/rand.
	Rand io.Reader
	// Stop, when closed or sent to, makes running searches return ErrStopped.
	Stop <-chan struct{}
}

func (m *Miner) params() *SystemParameters {
	if m == nil || m.Params == nil {
		return DefaultSystemParameters
	}
	return m.Params
}

func (m *Miner) reader() io.Reader {
	if m == nil || m.Rand == nil {
		return common.FastReader()
	}
	return m.Rand
}

// Genesis mines the first block of a chain, which has no predecessor.
func (m *Miner) Genesis(tx *Transaction) (*Block, error) {
	return m.mine(NoPredecessor(), tx)
}

// Next mines a block holding tx that links to prev.
func (m *Miner) Next(prev *Block, tx *Transaction) (*Block, error) {
	if prev == nil {
		return nil, errors.New("no preceding block")
	}
	return m.mine(LinkTo(prev.hash), tx)
}

func (m *Miner) mine(previous PreviousHash, tx *Transaction) (*Block, error) {
	if tx == nil {
		return nil, errors.New("no transaction")
	}
	params := m.params()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s := &search{
		previous:    previous,
		tx:          tx,
		target:      params.Target(),
		maxAttempts: params.MaxAttempts,
		rnd:         &lockedReader{r: m.reader()},
		done:        make(chan struct{}),
	}

	// The caller's stop channel is translated into done, which is closed exactly once and so
	// stops every worker, whether the caller closes Stop or sends a single struct on it.
	if m != nil && m.Stop != nil {
		go func() {
			select {
			case <-m.Stop:
				s.finish(searchResult{err: errors.Wrap(ErrStopped, 0)})
			case <-s.done:
			}
		}()
	}
	if params.Timeout > 0 {
		timer := time.AfterFunc(params.Timeout, func() {
			s.finish(searchResult{err: errors.WrapPrefix(ErrTimeout, fmt.Sprintf("no block found within %s", params.Timeout), 0)})
		})
		defer timer.Stop()
	}

	workers := params.Workers
	if workers < 2 {
		workers = 1
	}
	start, width := params.seedRange()
	if workers == 1 {
		s.run(start, width)
	} else {
		s.runConcurrent(start, width, workers)
	}

	res := s.result
	if res.err != nil {
		return nil, res.err
	}
	Logger.WithFields(logrus.Fields{
		"attempts": res.attempts,
		"workers":  workers,
		"linked":   !previous.IsNone(),
	}).Debug("mined block")
	return &Block{
		previous: previous,
		tx:       tx,
		seed:     res.seed,
		hash:     res.hash,
		attempts: res.attempts,
	}, nil
}

type searchResult struct {
	seed, hash *big.Int
	attempts   uint64
	err        error
}

// search is the state shared by the workers looking for a seed for one block.
type search struct {
	attempts uint64 // accessed atomically; first for 64-bit alignment

	previous    PreviousHash
	tx          *Transaction
	target      *big.Int
	maxAttempts uint64
	rnd         io.Reader

	once   sync.Once
	done   chan struct{}
	result searchResult
}

// finish records the outcome of the search and stops all workers. Only the first call has
// an effect.
func (s *search) finish(res searchResult) {
	s.once.Do(func() {
		s.result = res
		close(s.done)
	})
}

// run tries random seeds from [lo, lo+width) until a seed is found or the search is
// finished by another worker, the attempt bound, the timeout or the caller.
func (s *search) run(lo, width *big.Int) {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		n := atomic.AddUint64(&s.attempts, 1)
		if s.maxAttempts > 0 && n > s.maxAttempts {
			s.finish(searchResult{err: errors.WrapPrefix(ErrTimeout, fmt.Sprintf("no block found in %d attempts", s.maxAttempts), 0)})
			return
		}

		seed, err := common.RandomInRange(s.rnd, lo, width)
		if err != nil {
			s.finish(searchResult{err: errors.WrapPrefix(err, "failed to sample seed", 0)})
			return
		}
		if h := blockHash(s.previous, s.tx, seed); h.Cmp(s.target) < 0 {
			s.finish(searchResult{seed: seed, hash: h, attempts: n})
			return
		}
	}
}

// runConcurrent searches with one worker per range of splitRange and returns when all
// workers have returned.
func (s *search) runConcurrent(start, width *big.Int, workers int) {
	var wg sync.WaitGroup
	ranges := splitRange(start, width, workers)
	wg.Add(len(ranges))
	for _, r := range ranges {
		go func(lo, w *big.Int) {
			defer wg.Done()
			s.run(lo, w)
		}(r[0], r[1])
	}
	wg.Wait()
}

// splitRange splits [start, start+width) into n disjoint consecutive ranges, returned as
// (start, width) pairs. The last range absorbs the remainder.
func splitRange(start, width *big.Int, n int) [][2]*big.Int {
	sub := new(big.Int).Quo(width, big.NewInt(int64(n)))
	ranges := make([][2]*big.Int, n)
	lo := new(big.Int).Set(start)
	for i := 0; i < n-1; i++ {
		ranges[i] = [2]*big.Int{new(big.Int).Set(lo), sub}
		lo.Add(lo, sub)
	}
	end := new(big.Int).Add(start, width)
	ranges[n-1] = [2]*big.Int{lo, end.Sub(end, lo)}
	return ranges
}

// lockedReader serializes reads from a reader shared by several workers.
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}
