package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/secretops/secret"
)

func valueOf(kv map[string]string) Entry {
	return ValueEntry(secret.MapOf(kv))
}

func TestMemoryCache_GetPutEvict(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "env", "nonexistent"); ok {
		t.Error("Get on empty cache should return ok=false")
	}

	want := valueOf(map[string]string{"redisPassword": "redisadmin"})
	if err := c.Put(ctx, "env", "redis-password", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := c.Get(ctx, "env", "redis-password")
	if !ok {
		t.Fatal("Get after Put should return ok=true")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	if err := c.Evict(ctx, "env", "redis-password"); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if _, ok := c.Get(ctx, "env", "redis-password"); ok {
		t.Error("Get after Evict should return ok=false")
	}
	if err := c.Evict(ctx, "env", "redis-password"); err != nil {
		t.Errorf("Evict on missing key should not error, got: %v", err)
	}
	if len(c.Envs()) != 0 {
		t.Errorf("empty segment should be dropped, Envs() = %v", c.Envs())
	}
}

func TestMemoryCache_Segmentation(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	x := valueOf(map[string]string{"k": "X"})
	y := valueOf(map[string]string{"k": "Y"})

	_ = c.Put(ctx, "envA", "secret", x)
	_ = c.Put(ctx, "envB", "secret", y)

	gotA, _ := c.Get(ctx, "envA", "secret")
	gotB, _ := c.Get(ctx, "envB", "secret")
	if diff := cmp.Diff(x, gotA); diff != "" {
		t.Errorf("envA mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(y, gotB); diff != "" {
		t.Errorf("envB mismatch (-want +got):\n%s", diff)
	}

	_ = c.Evict(ctx, "envA", "secret")
	if _, ok := c.Get(ctx, "envB", "secret"); !ok {
		t.Error("evicting envA must not affect envB")
	}
}

func TestMemoryCache_StoresEveryKind(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	entries := map[string]Entry{
		"value":     valueOf(map[string]string{"k": "v"}),
		"not-found": NotFoundEntry(),
		"empty":     EmptyEntry(),
		"error":     ErrorEntry("boom"),
	}
	for id, e := range entries {
		if err := c.Put(ctx, "env", id, e); err != nil {
			t.Fatalf("Put(%s) error = %v", id, err)
		}
	}
	for id, want := range entries {
		got, ok := c.Get(ctx, "env", id)
		if !ok || got.Kind != want.Kind {
			t.Errorf("Get(%s) = %v, %v; want %s", id, got, ok, want.Kind)
		}
	}
	if c.Len() != len(entries) {
		t.Errorf("Len() = %d, want %d", c.Len(), len(entries))
	}
}

func TestMemoryCache_ExpiredEntriesStay(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	e := ValueEntry(secret.MapOf(map[string]string{"k": "v"}).WithExpireAt(time.Now().Add(-time.Second)))
	_ = c.Put(ctx, "env", "ttl", e)

	got, ok := c.Get(ctx, "env", "ttl")
	if !ok || !got.Expired(time.Now()) {
		t.Errorf("expired entry should stay retrievable until renewed, got %v %v", got, ok)
	}
}

func TestMemoryCache_PutIsolatesCallerMap(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	e := valueOf(map[string]string{"k": "v"})
	_ = c.Put(ctx, "env", "id", e)
	e.Value["k"] = secret.NewSecret("mutated")

	got, _ := c.Get(ctx, "env", "id")
	if s, _ := got.Get("k"); s.Value() != "v" {
		t.Errorf("cache entry changed through caller map: %q", s.Value())
	}
}

func TestMemoryCache_PutInvalidKey(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Put(context.Background(), "env", "", NotFoundEntry()); err != ErrInvalidKey {
		t.Errorf("Put with empty key error = %v, want ErrInvalidKey", err)
	}
}

func TestMemoryCache_ComputeIfAbsent(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) Entry {
		calls.Add(1)
		<-release
		return valueOf(map[string]string{"k": "computed"})
	}

	var wg sync.WaitGroup
	results := make([]Entry, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.ComputeIfAbsent(ctx, "env", "id", fn)
			if err != nil {
				t.Errorf("ComputeIfAbsent error = %v", err)
			}
			results[i] = e
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n < 1 || n > int32(len(results)) {
		t.Fatalf("compute calls = %d", n)
	}
	for i, e := range results {
		if s, _ := e.Get("k"); s.Value() != "computed" {
			t.Errorf("result %d = %v", i, e)
		}
	}

	// Present entries are never recomputed.
	before := calls.Load()
	_, _ = c.ComputeIfAbsent(ctx, "env", "id", fn)
	if calls.Load() != before {
		t.Error("ComputeIfAbsent recomputed a present entry")
	}
}

func TestMemoryCache_ComputeIfAbsentKeepsConcurrentPut(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	winner := valueOf(map[string]string{"k": "put"})

	got, err := c.ComputeIfAbsent(ctx, "env", "id", func(context.Context) Entry {
		_ = c.Put(ctx, "env", "id", winner)
		return valueOf(map[string]string{"k": "computed"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(winner, got); diff != "" {
		t.Errorf("ComputeIfAbsent should return the concurrent Put (-want +got):\n%s", diff)
	}

	if _, err := c.ComputeIfAbsent(ctx, "env", "id", nil); err != ErrNilCompute {
		t.Errorf("nil fn error = %v", err)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := fmt.Sprintf("env-%d", i%5)
			id := fmt.Sprintf("id-%d", i%7)
			_ = c.Put(ctx, env, id, valueOf(map[string]string{"i": fmt.Sprint(i)}))
			_, _ = c.Get(ctx, env, id)
			if i%3 == 0 {
				_ = c.Evict(ctx, env, id)
			}
			c.Range(func(Key, Entry) bool { return true })
		}(i)
	}
	wg.Wait()
}

func TestMemoryCache_Range(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	_ = c.Put(ctx, "a", "x", ErrorEntry("boom"))
	_ = c.Put(ctx, "b", "y", NotFoundEntry())

	seen := map[Key]Kind{}
	c.Range(func(k Key, e Entry) bool {
		seen[k] = e.Kind
		return true
	})
	want := map[Key]Kind{{EnvID: "a", NaturalID: "x"}: KindError, {EnvID: "b", NaturalID: "y"}: KindNotFound}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("Range mismatch (-want +got):\n%s", diff)
	}

	stops := 0
	c.Range(func(Key, Entry) bool {
		stops++
		return false
	})
	if stops != 1 {
		t.Errorf("Range should stop when fn returns false, visited %d", stops)
	}
}
