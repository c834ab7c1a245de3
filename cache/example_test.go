package cache_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/secretops/cache"
	"github.com/jonwraymond/secretops/secret"
)

func ExampleNewMemoryCache() {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	bundle := secret.MapOf(map[string]string{"redisPassword": "redisadmin"})
	_ = c.Put(ctx, "prod", "redis-password", cache.ValueEntry(bundle))

	e, ok := c.Get(ctx, "prod", "redis-password")
	fmt.Println("found:", ok, "kind:", e.Kind)

	_, ok = c.Get(ctx, "staging", "redis-password")
	fmt.Println("other environment found:", ok)
	// Output:
	// found: true kind: VALUE
	// other environment found: false
}

func ExampleMemoryCache_ComputeIfAbsent() {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	e, _ := c.ComputeIfAbsent(ctx, "prod", "db", func(context.Context) cache.Entry {
		return cache.ErrorEntry("vault sealed")
	})
	fmt.Println(e)

	// The error outcome is cached; fn is not called again.
	e, _ = c.ComputeIfAbsent(ctx, "prod", "db", func(context.Context) cache.Entry {
		return cache.NotFoundEntry()
	})
	fmt.Println(e)
	// Output:
	// Entry{ERROR "vault sealed"}
	// Entry{ERROR "vault sealed"}
}
