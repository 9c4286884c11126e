package cache_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/sandrolain/jitq/pkg/cache"
	"github.com/sandrolain/jitq/pkg/parser"
	"github.com/sandrolain/jitq/pkg/types"
)

func mustPath(t *testing.T, src string) types.Path {
	t.Helper()
	p, err := parser.ParsePath(src)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCacheNew(t *testing.T) {
	c := cache.New[int](10)
	if got := c.Len(); got != 0 {
		t.Fatalf("expected empty cache, got %d", got)
	}
	if got := c.Capacity(); got != 10 {
		t.Fatalf("expected capacity 10, got %d", got)
	}
}

func TestCacheDefaultCapacity(t *testing.T) {
	c := cache.New[int](0)
	if got := c.Capacity(); got != 256 {
		t.Fatalf("expected default capacity 256, got %d", got)
	}
}

func TestCacheSetGet(t *testing.T) {
	c := cache.New[*types.Script](4)
	script := types.NewPathScript(mustPath(t, ".name"), ".name")
	c.Set(".name", script)
	if got := c.Len(); got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}
	got, ok := c.Get(".name")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != script {
		t.Fatal("expected same script pointer")
	}
}

func TestCacheMiss(t *testing.T) {
	c := cache.New[*types.Script](4)
	got, ok := c.Get("missing")
	if ok || got != nil {
		t.Fatal("expected cache miss")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := cache.New[string](3)
	var evicted []string
	c.OnEvict(func(key, _ string) { evicted = append(evicted, key) })

	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, k)
	}
	c.Get("a") // a is now most recently used
	c.Set("d", "d")

	if got := c.Len(); got != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", got)
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal(`expected "b" to be evicted (LRU)`)
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal(`expected recently used "a" to survive`)
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v", evicted)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := cache.New[int](4)
	var evicted int
	c.OnEvict(func(string, int) { evicted++ })
	c.Set("k", 1)
	c.Invalidate("k")
	c.Invalidate("absent")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after Invalidate")
	}
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
}

func TestCacheClear(t *testing.T) {
	c := cache.New[int](4)
	var evicted int
	c.OnEvict(func(string, int) { evicted++ })
	for i, k := range []string{"a", "b", "c"} {
		c.Set(k, i)
	}
	c.Clear()
	if got := c.Len(); got != 0 {
		t.Fatalf("expected 0 after Clear, got %d", got)
	}
	if evicted != 3 {
		t.Fatalf("expected 3 evictions, got %d", evicted)
	}
}

func TestCacheGetOrCompile(t *testing.T) {
	c := cache.New[types.Path](4)
	callCount := 0
	compileFn := func() (types.Path, error) {
		callCount++
		return parser.ParsePath(".age")
	}

	p1, err := c.GetOrCompile(".age", compileFn)
	if err != nil || p1 == nil {
		t.Fatalf("first GetOrCompile: %v", err)
	}
	if callCount != 1 {
		t.Fatalf("expected 1 compile call, got %d", callCount)
	}

	p2, err := c.GetOrCompile(".age", compileFn)
	if err != nil || p2 == nil {
		t.Fatalf("second GetOrCompile: %v", err)
	}
	if callCount != 1 {
		t.Fatalf("expected still 1 call (cached), got %d", callCount)
	}
	if p1.String() != p2.String() {
		t.Fatal("expected cached path")
	}
}

func TestCacheGetOrCompileError(t *testing.T) {
	c := cache.New[int](4)
	boom := errors.New("boom")
	if _, err := c.GetOrCompile("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("errors must not be cached")
	}
}

func TestCacheSetUpdate(t *testing.T) {
	c := cache.New[int](4)
	c.Set("k", 1)
	c.Set("k", 2) // overwrite
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after overwrite")
	}
	if got != 2 {
		t.Fatal("expected updated value")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after overwrite, got %d", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := cache.New[int](8)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := string(rune('a' + (g+i)%12))
				c.Set(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 8 {
		t.Fatalf("cache grew past capacity: %d", c.Len())
	}
}
