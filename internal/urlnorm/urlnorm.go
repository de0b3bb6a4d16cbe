// Package urlnorm canonicalizes category URLs and normalizes category
// names for deduplication.
//
// The frontier and the category store both key on (retailerID, URL), so
// every URL must pass through Canonicalize before it is compared or
// persisted. Canonicalization is intentionally conservative: it removes
// representation differences (fragment, case, default port) without
// touching query strings, which many retailers use to select a category.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"
)

// Sentinel errors returned by canonicalization.
var (
	// ErrNotAbsolute is returned when a URL lacks a scheme or host.
	ErrNotAbsolute = errors.New("url is not absolute")

	// ErrUnsupportedScheme is returned for non-HTTP(S) URLs.
	ErrUnsupportedScheme = errors.New("url scheme is not http or https")
)

// Canonicalize normalizes an absolute URL for use as a dedup key.
//
// Normalization: lowercase scheme and host, strip the fragment, strip
// default ports (:80 for http, :443 for https), and treat an empty path
// as "/". The query string is preserved as-is.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	return canonicalize(u)
}

// Resolve resolves a possibly-relative href against the page it was
// discovered on and canonicalizes the result. This is the entry point for
// child candidates returned by page explorers.
func Resolve(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", pageURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid href %q: %w", href, err)
	}
	return canonicalize(base.ResolveReference(ref))
}

// canonicalize applies the normalization rules to a parsed URL.
func canonicalize(u *url.URL) (string, error) {
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%q: %w", u.Scheme, ErrUnsupportedScheme)
	}
	if u.Host == "" {
		return "", ErrNotAbsolute
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Strip default ports so http://host:80/ and http://host/ compare equal.
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// SameSite reports whether two URLs belong to the same registered domain
// (eTLD+1). Subdomains of the same site compare equal, so a category tree
// may span www.example.com and shop.example.com without being treated as
// an external link. Hosts without a registered suffix (IP literals,
// localhost) fall back to exact host comparison.
func SameSite(a, b string) (bool, error) {
	ua, err := url.Parse(a)
	if err != nil {
		return false, fmt.Errorf("invalid url %q: %w", a, err)
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false, fmt.Errorf("invalid url %q: %w", b, err)
	}

	return strings.EqualFold(registeredDomain(ua.Hostname()), registeredDomain(ub.Hostname())), nil
}

// registeredDomain returns the eTLD+1 for a hostname, or the hostname
// itself when no public suffix applies.
func registeredDomain(host string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// NormalizeName normalizes a category display name: Unicode NFC, interior
// whitespace collapsed to single spaces, and surrounding whitespace
// trimmed. The original casing is preserved because the name is stored as
// discovered.
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	return strings.Join(strings.Fields(name), " ")
}
