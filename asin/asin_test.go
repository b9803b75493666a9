package asin

import "testing"

func TestValid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "classic asin", input: "B08N5WRWNW", expected: true},
		{name: "all digits", input: "0123456789", expected: true},
		{name: "all letters", input: "ABCDEFGHIJ", expected: true},
		{name: "lowercase rejected", input: "b08n5wrwnw", expected: false},
		{name: "too short", input: "B08N5WRWN", expected: false},
		{name: "too long", input: "B08N5WRWNW1", expected: false},
		{name: "embedded hyphen", input: "B08N-WRWNW", expected: false},
		{name: "empty", input: "", expected: false},
		{name: "whitespace", input: " B08N5WRWN", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.input); got != tt.expected {
				t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "dp path",
			url:      "https://www.amazon.com/dp/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "dp path lowercase asin",
			url:      "https://www.amazon.com/dp/b08n5wrwnw",
			expected: "B08N5WRWNW",
		},
		{
			name:     "dp path with product slug",
			url:      "https://www.amazon.com/Some-Product-Name/dp/B08N5WRWNW/ref=sr_1_1",
			expected: "B08N5WRWNW",
		},
		{
			name:     "gp product path",
			url:      "https://www.amazon.co.uk/gp/product/B000123456",
			expected: "B000123456",
		},
		{
			name:     "plain product path",
			url:      "https://www.amazon.de/product/B000123456",
			expected: "B000123456",
		},
		{
			name:     "d path",
			url:      "https://www.amazon.ca/d/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "obidos path case-insensitive",
			url:      "https://www.amazon.com/exec/obidos/asin/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "query parameter lowercase key",
			url:      "https://www.amazon.com/some/page?asin=B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "query parameter uppercase key",
			url:      "https://www.amazon.fr/some/page?ASIN=b08n5wrwnw",
			expected: "B08N5WRWNW",
		},
		{
			name:     "amzn.to short link segment",
			url:      "https://amzn.to/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "a.co short link segment",
			url:      "https://a.co/d/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "scheme-less url",
			url:      "www.amazon.com/dp/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "fallback run with digit",
			url:      "https://www.amazon.com/offers/today/B08N5WRWNW-clearance",
			expected: "B08N5WRWNW",
		},
		{
			name:     "fallback skips all-letter run",
			url:      "https://www.amazon.com/BESTSELLER/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "fallback rejects all-letter run only",
			url:      "https://www.amazon.com/BESTSELLER/today",
			expected: "",
		},
		{
			name:     "non-amazon host",
			url:      "https://www.example.com/dp/B08N5WRWNW",
			expected: "",
		},
		{
			name:     "lookalike short host",
			url:      "https://banana.co/d/B08N5WRWNW",
			expected: "",
		},
		{
			name:     "no asin anywhere",
			url:      "https://www.amazon.com/gp/help/customer",
			expected: "",
		},
		{
			name:     "unparseable",
			url:      "https://www.amazon.com/%zz",
			expected: "",
		},
		{
			name:     "empty input",
			url:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.url)
			if tt.expected == "" {
				if ok {
					t.Fatalf("Extract(%q) = %q, want no match", tt.url, got)
				}
				return
			}
			if !ok || got != tt.expected {
				t.Errorf("Extract(%q) = %q/%v, want %q", tt.url, got, ok, tt.expected)
			}
		})
	}
}
