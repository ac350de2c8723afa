package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/pkg/metrics"
)

// Treap-based, in-memory BestStore implementation. One treap per player.
//
// Ordering: rating DESC, then song id ASC, then difficulty ASC. "less" means
// ranks earlier, so in-order traversal yields the best list from the top.

type ratingFP int64

// toFixedPoint scales a play rating to ten-thousandths, which is the
// precision every rating carries.
func toFixedPoint(r model.AnnotatedRecord) ratingFP {
	return ratingFP(r.PlayRating.Shift(4).IntPart())
}

type node struct {
	key    model.ChartKey
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
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

func less(aRating ratingFP, aKey model.ChartKey, bRating ratingFP, bKey model.ChartKey) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	if aKey.SongID != bKey.SongID {
		return aKey.SongID < bKey.SongID
	}
	return aKey.Difficulty < bKey.Difficulty
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

func insert(n *node, key model.ChartKey, rating ratingFP) *node {
	if n == nil {
		return &node{key: key, rating: rating, prio: rand.Uint64(), size: 1}
	}
	if less(rating, key, n.rating, n.key) {
		n.left = insert(n.left, key, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key model.ChartKey, rating ratingFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && key == n.key:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key, rating)
		}
	case less(rating, key, n.rating, n.key):
		n.left = deleteNode(n.left, key, rating)
	default:
		n.right = deleteNode(n.right, key, rating)
	}
	fix(n)
	return n
}

// position returns the 1-based in-order index of (key, rating).
func position(n *node, key model.ChartKey, rating ratingFP) int {
	pos := 0
	for n != nil {
		switch {
		case rating == n.rating && key == n.key:
			return pos + nsize(n.left) + 1
		case less(rating, key, n.rating, n.key):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit chart keys in rank order.
func collectTopN(n *node, limit int, out *[]model.ChartKey) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.key)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// board is one player's best list.
type board struct {
	root    *node
	byChart map[model.ChartKey]model.AnnotatedRecord
}

type TreapStore struct {
	mu      sync.RWMutex
	players map[string]*board

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		players:               make(map[string]*board),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// better reports whether a beats b on the same chart.
func better(a, b model.AnnotatedRecord) bool {
	if c := a.PlayRating.Cmp(b.PlayRating); c != 0 {
		return c > 0
	}
	return a.Score > b.Score
}

// UpdateBest implements BestStore.UpdateBest with O(log n) expected time.
func (s *TreapStore) UpdateBest(_ context.Context, player string, rec model.AnnotatedRecord) (bool, error) {
	if rec.InternalLevel == nil {
		return false, ErrUnrated
	}
	key, ok := rec.ChartKey()
	if !ok {
		return false, ErrInvalidChart
	}
	nr := toFixedPoint(rec)

	s.mu.Lock()
	b, ok := s.players[player]
	if !ok {
		b = &board{byChart: make(map[model.ChartKey]model.AnnotatedRecord)}
		s.players[player] = b
	}
	if old, ok := b.byChart[key]; ok {
		if !better(rec, old) {
			s.mu.Unlock()
			return false, nil
		}
		b.root = deleteNode(b.root, key, toFixedPoint(old))
	}
	b.byChart[key] = rec
	b.root = insert(b.root, key, nr)
	s.mu.Unlock()

	metrics.RecordBestStoreUpdate()
	return true, nil
}

// Rank returns the position of a chart in the player's best list in O(log n).
func (s *TreapStore) Rank(_ context.Context, player string, key model.ChartKey) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.players[player]
	if !ok {
		return Entry{}, ErrNotFound
	}
	rec, ok := b.byChart[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:   position(b.root, key, toFixedPoint(rec)),
		Player: player,
		Chart:  key,
		Record: rec,
	}, nil
}

// TopN returns the player's top N entries ordered by rating desc.
func (s *TreapStore) TopN(_ context.Context, player string, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.players[player]
	if !ok {
		return nil, ErrNotFound
	}
	keys := make([]model.ChartKey, 0, min(n, len(b.byChart)))
	collectTopN(b.root, n, &keys)

	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Rank: i + 1, Player: player, Chart: k, Record: b.byChart[k]}
	}
	return out, nil
}

// Count returns the number of charts tracked for a player.
func (s *TreapStore) Count(_ context.Context, player string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.players[player]; ok {
		return len(b.byChart)
	}
	return 0
}

// Players returns the number of players tracked.
func (s *TreapStore) Players(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateBestStorePlayers(s.Players(ctx))
			}
		}
	}()
}
