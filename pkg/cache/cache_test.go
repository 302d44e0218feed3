package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	key    Key
	stale  bool
	probes int
}

func (e *entry) CacheKey() Key { return e.key }

func (e *entry) IsStale(context.Context) bool {
	e.probes++
	return e.stale
}

func TestNewKey(t *testing.T) {
	a := NewKey("parent", "//a", "control")
	assert.Equal(t, a, NewKey("parent", "//a", "control"))
	assert.NotEqual(t, a, NewKey("other", "//a", "control"))
	assert.NotEqual(t, a, NewKey("parent", "//b", "control"))
	assert.NotEqual(t, a, NewKey("parent", "//a", "button"))

	// Separators keep field boundaries distinct
	assert.NotEqual(t, NewKey("ab", "c", ""), NewKey("a", "bc", ""))
}

func TestCheck_MissThenHit(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()
	key := NewKey("", "//a", "")

	first := &entry{key: key}
	got, outcome := c.Check(ctx, first)
	assert.Equal(t, Miss, outcome)
	assert.Same(t, first, got)

	twin := &entry{key: key}
	got, outcome = c.Check(ctx, twin)
	assert.Equal(t, Hit, outcome)
	assert.Same(t, first, got, "hit must hand back the cached instance")
	assert.Equal(t, 1, first.probes)
	assert.Equal(t, 1, c.Len())
}

func TestCheck_SelfIsHitWithoutProbe(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()
	e := &entry{key: NewKey("", "//a", "")}

	c.Check(ctx, e)
	got, outcome := c.Check(ctx, e)
	assert.Equal(t, Hit, outcome)
	assert.Same(t, e, got)
	assert.Equal(t, 0, e.probes)
}

func TestCheck_StaleInvalidatesEverything(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()

	a := &entry{key: NewKey("", "//a", "")}
	b := &entry{key: NewKey("", "//b", "")}
	d := &entry{key: NewKey("", "//c", "")}
	for _, e := range []*entry{a, b, d} {
		_, outcome := c.Check(ctx, e)
		require.Equal(t, Miss, outcome)
	}
	require.Equal(t, 3, c.Len())
	gen := c.Generation()

	a.stale = true
	fresh := &entry{key: a.key}
	got, outcome := c.Check(ctx, fresh)
	assert.Equal(t, StaleInvalidateAll, outcome)
	assert.Same(t, fresh, got)
	assert.Equal(t, 1, c.Len(), "only the candidate survives")
	assert.Equal(t, gen+1, c.Generation())

	// b was never stale but is gone too
	_, ok := c.Lookup(ctx, b.key)
	assert.False(t, ok)
}

func TestCheck_Disabled(t *testing.T) {
	c := New[*entry](false)
	ctx := context.Background()
	e := &entry{key: NewKey("", "//a", "")}

	got, outcome := c.Check(ctx, e)
	assert.Equal(t, Disabled, outcome)
	assert.Same(t, e, got)
	assert.Equal(t, 0, c.Len())

	_, outcome = c.Check(ctx, &entry{key: e.key})
	assert.Equal(t, Disabled, outcome)

	_, ok := c.Lookup(ctx, e.key)
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()
	e := &entry{key: NewKey("p", "//a", "")}

	_, ok := c.Lookup(ctx, e.key)
	assert.False(t, ok)

	c.Check(ctx, e)
	got, ok := c.Lookup(ctx, e.key)
	assert.True(t, ok)
	assert.Same(t, e, got)

	e.stale = true
	_, ok = c.Lookup(ctx, e.key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Generation())
}

func TestOnOutcome(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()
	var seen []Outcome
	c.OnOutcome(func(o Outcome) { seen = append(seen, o) })

	e := &entry{key: NewKey("", "//a", "")}
	c.Check(ctx, e)
	c.Lookup(ctx, e.key)
	c.Lookup(ctx, NewKey("", "//missing", ""))
	c.Invalidate()

	assert.Equal(t, []Outcome{Miss, Hit, StaleInvalidateAll}, seen)
}

func TestSetEnabled(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()
	c.Check(ctx, &entry{key: NewKey("", "//a", "")})

	c.SetEnabled(false)
	assert.False(t, c.Enabled())
	assert.Equal(t, 0, c.Len())

	c.SetEnabled(true)
	_, outcome := c.Check(ctx, &entry{key: NewKey("", "//a", "")})
	assert.Equal(t, Miss, outcome)
}

func TestClear(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()
	c.Check(ctx, &entry{key: NewKey("", "//a", "")})

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Generation())
}

func TestCheck_Concurrent(t *testing.T) {
	c := New[*entry](true)
	ctx := context.Background()
	key := NewKey("", "//shared", "")

	var wg sync.WaitGroup
	results := make([]*entry, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _ := c.Check(ctx, &entry{key: key})
			results[i] = got
		}(i)
	}
	wg.Wait()

	// Every caller ends up with the single stored instance
	for _, r := range results[1:] {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, c.Len())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "miss", Miss.String())
	assert.Equal(t, "hit", Hit.String())
	assert.Equal(t, "stale_invalidate_all", StaleInvalidateAll.String())
	assert.Equal(t, "disabled", Disabled.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
