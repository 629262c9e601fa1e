package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/okian/ageguess/internal/domain/types"
	"github.com/okian/ageguess/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then seq ASC, where seq is the submission counter.
// "less" means ranks earlier, so in-order traversal produces the
// leaderboard from best to worst.

// treap node
type node struct {
	entry types.Entry
	seq   uint64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aSeq) should appear before (bScore, bSeq).
func less(aScore int, aSeq uint64, bScore int, bSeq uint64) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aSeq < bSeq
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n, nn *node) *node {
	if n == nil {
		return nn
	}
	if less(nn.entry.Score, nn.seq, n.entry.Score, n.seq) {
		n.left = insert(n.left, nn)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, nn)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, score int, seq uint64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.entry.Score && seq == n.seq:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, score, seq)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, score, seq)
		}
	case less(score, seq, n.entry.Score, n.seq):
		n.left = deleteNode(n.left, score, seq)
	default:
		n.right = deleteNode(n.right, score, seq)
	}
	fix(n)
	return n
}

// last returns the lowest ranked node.
func last(n *node) *node {
	if n == nil {
		return nil
	}
	for n.right != nil {
		n = n.right
	}
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.entry)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore is the non-persisted leaderboard.
type TreapStore struct {
	mu         sync.RWMutex
	root       *node
	byGame     map[string]struct{}
	seq        uint64
	maxEntries int
	now        func() time.Time
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byGame: make(map[string]struct{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements Store.Append in O(log n) expected time.
func (s *TreapStore) Append(_ context.Context, e types.Entry) error {
	e.Username = strings.TrimSpace(e.Username)
	if e.PlayedAt.IsZero() {
		e.PlayedAt = s.now()
	}
	e.Rank = 0

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.GameID != "" {
		if _, dup := s.byGame[e.GameID]; dup {
			metrics.RecordLeaderboardDuplicate()
			return fmt.Errorf("%w: %s", ErrDuplicate, e.GameID)
		}
		s.byGame[e.GameID] = struct{}{}
	}

	s.seq++
	s.root = insert(s.root, &node{entry: e, seq: s.seq, prio: rand.Uint64(), size: 1})

	if s.maxEntries > 0 && nsize(s.root) > s.maxEntries {
		worst := last(s.root)
		s.root = deleteNode(s.root, worst.entry.Score, worst.seq)
		delete(s.byGame, worst.entry.GameID)
	}
	return nil
}

// TopN returns the top N entries ordered by score desc.
func (s *TreapStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, nsize(s.root)))
	collectTopN(s.root, n, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the number of stored entries.
func (s *TreapStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nsize(s.root), nil
}

// Close is a no-op.
func (s *TreapStore) Close() error { return nil }
