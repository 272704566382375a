package oracle

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CachingOracle memoizes proposals by normalized description for the life
// of the process. "No opinion" results are cached; errors are not, so a
// failed lookup is retried on the next request. Concurrent requests for the
// same description share one upstream call.
type CachingOracle struct {
	inner      Oracle
	maxEntries int

	mu      sync.Mutex
	entries map[string]*Proposal
	order   []string

	group singleflight.Group
}

// NewCachingOracle wraps inner. maxEntries <= 0 means unbounded; otherwise
// the oldest entry is evicted once the bound is reached.
func NewCachingOracle(inner Oracle, maxEntries int) *CachingOracle {
	return &CachingOracle{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[string]*Proposal),
	}
}

// CacheKey normalizes a description for caching.
func CacheKey(description string) string {
	return strings.ToUpper(strings.Join(strings.Fields(description), " "))
}

// Categorize implements Oracle.
func (c *CachingOracle) Categorize(ctx context.Context, description string) (*Proposal, error) {
	key := CacheKey(description)
	if p, ok := c.lookup(key); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if p, ok := c.lookup(key); ok {
			return p, nil
		}
		p, err := c.inner.Categorize(ctx, description)
		if err != nil {
			return nil, err
		}
		c.store(key, p)
		return copyProposal(p), nil
	})
	if err != nil {
		return nil, err
	}
	return copyProposal(v.(*Proposal)), nil
}

// Len returns the number of cached descriptions.
func (c *CachingOracle) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachingOracle) lookup(key string) (*Proposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	return copyProposal(p), ok
}

func (c *CachingOracle) store(key string, p *Proposal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	if c.maxEntries > 0 {
		for len(c.order) >= c.maxEntries {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
	}
	c.entries[key] = copyProposal(p)
	c.order = append(c.order, key)
}

func copyProposal(p *Proposal) *Proposal {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
