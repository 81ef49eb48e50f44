// Package links canonicalises and normalises article URLs.
package links

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// trackingParams are stripped before storing or comparing URLs.
var trackingParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"gclid",
	"fbclid",
}

// Canonicalize returns the form of rawURL used for storage and hashing:
// fragment and tracking parameters removed, one trailing path slash removed.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: not absolute", rawURL)
	}

	u.Fragment = ""
	u.RawFragment = ""
	stripTracking(u)

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}
	return u.String(), nil
}

// Hash returns the hex SHA-256 of s. Callers hash the canonical URL.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Normalize produces the comparison key for deduplication. Equivalent URLs
// that differ only in fragment, tracking parameters, host case, default port
// or trailing slashes normalise to the same string, and Normalize is
// idempotent. Every trailing slash is stripped, not just one, so that
// "a//" and "a/" both normalise to "a". Input that does not parse as an absolute URL is lowercased and
// trimmed instead.
func Normalize(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	stripTracking(u)

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String()
}

// DedupeKey returns the normalised URL, or the lowercased title when the URL
// is empty.
func DedupeKey(rawURL, title string) string {
	if key := Normalize(rawURL); key != "" {
		return key
	}
	return strings.ToLower(strings.TrimSpace(title))
}

// IsAbsoluteHTTP reports whether rawURL is an absolute http(s) URL with a host.
func IsAbsoluteHTTP(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Hostname returns the lowercased host of rawURL without a leading "www.".
func Hostname(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}

func stripTracking(u *url.URL) {
	if u.RawQuery == "" {
		u.ForceQuery = false
		return
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	u.ForceQuery = false
}
