// Package asin validates Amazon Standard Identification Numbers and extracts
// them from product URLs.
package asin

import (
	"net/url"
	"regexp"
	"strings"
)

var validASIN = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// Path patterns that carry an ASIN, in the order they are tried. URLs may
// legally contain lower-case ASINs, hence the (?i).
var pathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/gp/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/d/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/exec/obidos/ASIN/([A-Z0-9]{10})`),
}

var (
	alnumRun = regexp.MustCompile(`[A-Za-z0-9]{10}`)
	hasDigit = regexp.MustCompile(`[0-9]`)
)

// Amazon storefront domains. A hostname containing one of these substrings
// is eligible for extraction.
var storefrontDomains = []string{
	"amazon.com",
	"amazon.co.",
	"amazon.de",
	"amazon.fr",
	"amazon.it",
	"amazon.es",
	"amazon.ca",
}

// Valid reports whether s is exactly a 10-character upper-case alphanumeric
// ASIN. Callers must upper-case candidates before validating.
func Valid(s string) bool {
	return validASIN.MatchString(s)
}

// Extract parses an Amazon product URL, with or without a scheme, and
// returns the embedded ASIN. It fails closed: any parse error or
// non-Amazon host yields ok=false.
func Extract(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !allowedHost(host) {
		return "", false
	}

	// 1. Explicit query parameter.
	query := u.Query()
	for _, key := range []string{"asin", "ASIN"} {
		if candidate := strings.ToUpper(query.Get(key)); Valid(candidate) {
			return candidate, true
		}
	}

	// 2. Known path patterns.
	for _, re := range pathPatterns {
		if m := re.FindStringSubmatch(u.Path); m != nil {
			candidate := strings.ToUpper(m[1])
			if Valid(candidate) {
				return candidate, true
			}
		}
	}

	// 3. Short links put the ASIN in a bare path segment.
	if shortLinkHost(host) {
		for _, segment := range strings.Split(u.Path, "/") {
			candidate := strings.ToUpper(segment)
			if candidate != "" && Valid(candidate) {
				return candidate, true
			}
		}
	}

	// 4. Any 10-character alphanumeric run in the path. Requiring a digit
	// filters out plain words like "BESTSELLER".
	for _, run := range alnumRun.FindAllString(u.Path, -1) {
		if !hasDigit.MatchString(run) {
			continue
		}
		candidate := strings.ToUpper(run)
		if Valid(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func allowedHost(host string) bool {
	for _, domain := range storefrontDomains {
		if strings.Contains(host, domain) {
			return true
		}
	}
	return shortLinkHost(host)
}

func shortLinkHost(host string) bool {
	switch {
	case host == "amzn.to", host == "a.co":
		return true
	case strings.HasSuffix(host, ".amzn.to"), strings.HasSuffix(host, ".a.co"):
		return true
	}
	return false
}
