package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL resolves rawURL against base and returns the absolute form.
// No further normalization is applied: the result is the dedup key.
func ResolveURL(rawURL, base string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrMalformedURL, rawURL, err)
	}
	if base != "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("%w: parse base %q: %v", ErrMalformedURL, base, err)
		}
		ref = baseURL.ResolveReference(ref)
	}
	if !ref.IsAbs() {
		return "", fmt.Errorf("%w: %q is not absolute", ErrMalformedURL, rawURL)
	}
	return ref.String(), nil
}

// HostContains reports whether the hostname of absURL contains domain.
// This is a substring test, so subdomains and lookalike hosts such as
// "standardbank.co.mz.attacker.net" are admitted.
func HostContains(absURL, domain string) bool {
	u, err := url.Parse(absURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || domain == "" {
		return false
	}
	return strings.Contains(host, strings.ToLower(domain))
}
