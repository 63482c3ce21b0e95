package collector

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// NormalizeURL standardizes a URL so the same link found twice in a message
// collapses to one candidate. It lowercases the scheme and host, removes default
// ports and fragments, and sorts the raw query pairs. The result is a dedup key,
// not an address to fetch.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse url: %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		pairs = slices.DeleteFunc(pairs, func(p string) bool { return p == "" })
		slices.Sort(pairs)
		u.RawQuery = strings.Join(pairs, "&")
	}

	return u.String(), nil
}

// MatchesDomain reports whether rawURL contains any of the (case-insensitive) patterns.
func MatchesDomain(rawURL string, patterns []string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
