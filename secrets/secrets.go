// Package secrets abstracts the parameter store the PA-API credentials are
// read from.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Provider fetches named, decrypted parameters in one batched call.
// Implementations return only the parameters they could resolve; callers
// decide whether a partial result is fatal.
type Provider interface {
	GetParameters(ctx context.Context, names []string) (map[string]string, error)
}

// EnvProvider resolves parameter paths from the process environment.
// "/pricesync/paapi/access-key" maps to PRICESYNC_PAAPI_ACCESS_KEY.
type EnvProvider struct {
	// Lookup defaults to os.LookupEnv; overridable for tests.
	Lookup func(string) (string, bool)
}

func (p EnvProvider) GetParameters(_ context.Context, names []string) (map[string]string, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		if value, ok := lookup(EnvKey(name)); ok && value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// EnvKey converts a parameter path to its environment variable name.
func EnvKey(name string) string {
	key := strings.TrimPrefix(name, "/")
	key = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(key)
	return strings.ToUpper(key)
}

// Cached wraps a Provider with an in-process LRU so repeated lookups of the
// same parameters hit the store once per process lifetime. Values are never
// refreshed; a rotation is only observed after a restart.
type Cached struct {
	inner Provider
	cache *lru.Cache[string, string]
}

// NewCached builds a caching decorator holding up to size parameters.
func NewCached(inner Provider, size int) (*Cached, error) {
	if size <= 0 {
		size = 16
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("build parameter cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) GetParameters(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		if value, ok := c.cache.Get(name); ok {
			out[name] = value
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.inner.GetParameters(ctx, missing)
	if err != nil {
		return nil, err
	}
	for name, value := range fetched {
		c.cache.Add(name, value)
		out[name] = value
	}
	return out, nil
}
