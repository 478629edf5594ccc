// Package locations provides the pool of location identifiers that load
// test requests draw from.
package locations

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Pool is a fixed set of location identifiers. Choose draws uniformly at
// random without repetition within one draw. Safe for concurrent use.
type Pool struct {
	mu  sync.Mutex
	rng *rand.Rand
	ids []string
}

// NewPool builds a pool from the given identifiers, dropping duplicates
// while preserving first-seen order.
func NewPool(ids []string, seed int64) (*Pool, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, errors.New("location pool is empty")
	}
	return &Pool{
		rng: rand.New(rand.NewSource(seed)),
		ids: unique,
	}, nil
}

// Len reports the number of distinct identifiers in the pool.
func (p *Pool) Len() int {
	return len(p.ids)
}

// Choose returns n distinct identifiers drawn uniformly from the pool.
func (p *Pool) Choose(n int) ([]string, error) {
	if n < 1 {
		return nil, errors.New("choose count must be >= 1")
	}
	if n > len(p.ids) {
		return nil, fmt.Errorf("choose count %d exceeds pool size %d", n, len(p.ids))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Partial Fisher-Yates over an index view: only the first n positions
	// are settled, so large pools stay cheap for small draws.
	idx := make([]int, len(p.ids))
	for i := range idx {
		idx[i] = i
	}
	picked := make([]string, n)
	for i := 0; i < n; i++ {
		j := i + p.rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		picked[i] = p.ids[idx[i]]
	}
	return picked, nil
}
