package secrets

import (
	"context"
	"testing"
)

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "parameter path", input: "/pricesync/paapi/access-key", expected: "PRICESYNC_PAAPI_ACCESS_KEY"},
		{name: "no leading slash", input: "pricesync/region", expected: "PRICESYNC_REGION"},
		{name: "dots", input: "paapi.partner.tag", expected: "PAAPI_PARTNER_TAG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvKey(tt.input); got != tt.expected {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEnvProviderResolvesOnlyPresentValues(t *testing.T) {
	env := map[string]string{
		"PRICESYNC_PAAPI_ACCESS_KEY": "AKID",
		"PRICESYNC_PAAPI_SECRET_KEY": "",
	}
	provider := EnvProvider{Lookup: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}}

	got, err := provider.GetParameters(context.Background(), []string{
		"/pricesync/paapi/access-key",
		"/pricesync/paapi/secret-key",
		"/pricesync/paapi/partner-tag",
	})
	if err != nil {
		t.Fatalf("get parameters: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("resolved %d parameters, want 1", len(got))
	}
	if got["/pricesync/paapi/access-key"] != "AKID" {
		t.Fatalf("access key = %q, want AKID", got["/pricesync/paapi/access-key"])
	}
}

type countingProvider struct {
	calls  int
	values map[string]string
}

func (p *countingProvider) GetParameters(_ context.Context, names []string) (map[string]string, error) {
	p.calls++
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := p.values[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

func TestCachedFetchesOncePerProcess(t *testing.T) {
	inner := &countingProvider{values: map[string]string{
		"/a": "1",
		"/b": "2",
	}}
	cached, err := NewCached(inner, 8)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := cached.GetParameters(context.Background(), []string{"/a", "/b"})
		if err != nil {
			t.Fatalf("get parameters: %v", err)
		}
		if got["/a"] != "1" || got["/b"] != "2" {
			t.Fatalf("unexpected values: %v", got)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedFetchesOnlyMissing(t *testing.T) {
	inner := &countingProvider{values: map[string]string{"/a": "1", "/c": "3"}}
	cached, err := NewCached(inner, 8)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	if _, err := cached.GetParameters(context.Background(), []string{"/a"}); err != nil {
		t.Fatalf("get parameters: %v", err)
	}
	got, err := cached.GetParameters(context.Background(), []string{"/a", "/c"})
	if err != nil {
		t.Fatalf("get parameters: %v", err)
	}
	if got["/c"] != "3" {
		t.Fatalf("missing value not fetched: %v", got)
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
}
