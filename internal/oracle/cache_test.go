package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcOracle adapts a function to Oracle and counts calls.
type funcOracle struct {
	calls atomic.Int32
	fn    func(ctx context.Context, description string) (*Proposal, error)
}

func (f *funcOracle) Categorize(ctx context.Context, description string) (*Proposal, error) {
	f.calls.Add(1)
	return f.fn(ctx, description)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "COLES 0456", CacheKey("  coles   0456 "))
	assert.Equal(t, CacheKey("Coles\t0456"), CacheKey("COLES 0456"))
}

func TestCachingOracle_CachesProposalsAndAbsence(t *testing.T) {
	inner := &funcOracle{fn: func(ctx context.Context, d string) (*Proposal, error) {
		if CacheKey(d) == "COLES" {
			return &Proposal{EntityName: "Coles", EntityID: "ent-c", Confidence: 0.9}, nil
		}
		return nil, nil
	}}
	c := NewCachingOracle(inner, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.Categorize(ctx, "coles")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Coles", p.EntityName)
	}
	p, err := c.Categorize(ctx, " COLES ")
	require.NoError(t, err)
	require.NotNil(t, p)

	for i := 0; i < 2; i++ {
		p, err := c.Categorize(ctx, "unknown shop")
		require.NoError(t, err)
		assert.Nil(t, p)
	}

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCachingOracle_ReturnsCopies(t *testing.T) {
	inner := &funcOracle{fn: func(ctx context.Context, d string) (*Proposal, error) {
		return &Proposal{EntityName: "Coles", Confidence: 0.9}, nil
	}}
	c := NewCachingOracle(inner, 0)

	p, err := c.Categorize(context.Background(), "coles")
	require.NoError(t, err)
	p.EntityName = "mutated"

	again, err := c.Categorize(context.Background(), "coles")
	require.NoError(t, err)
	assert.Equal(t, "Coles", again.EntityName)
}

func TestCachingOracle_DoesNotCacheErrors(t *testing.T) {
	fail := true
	inner := &funcOracle{fn: func(ctx context.Context, d string) (*Proposal, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return &Proposal{EntityName: "Coles", Confidence: 0.9}, nil
	}}
	c := NewCachingOracle(inner, 0)

	_, err := c.Categorize(context.Background(), "coles")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	fail = false
	p, err := c.Categorize(context.Background(), "coles")
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachingOracle_Bounded(t *testing.T) {
	inner := &funcOracle{fn: func(ctx context.Context, d string) (*Proposal, error) {
		return &Proposal{EntityName: d, Confidence: 0.5}, nil
	}}
	c := NewCachingOracle(inner, 2)
	ctx := context.Background()

	for _, d := range []string{"A", "B", "C"} {
		_, err := c.Categorize(ctx, d)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, err := c.Categorize(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int32(4), inner.calls.Load(), "oldest entry was evicted")
}

func TestCachingOracle_ConcurrentSameDescription(t *testing.T) {
	release := make(chan struct{})
	inner := &funcOracle{fn: func(ctx context.Context, d string) (*Proposal, error) {
		<-release
		return &Proposal{EntityName: "Coles", Confidence: 0.9}, nil
	}}
	c := NewCachingOracle(inner, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Categorize(context.Background(), "coles")
			assert.NoError(t, err)
			assert.NotNil(t, p)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, inner.calls.Load(), int32(10))
	assert.Equal(t, 1, c.Len())
}
