// Package urlnorm validates and canonicalizes destination URLs before they
// are persisted. Normalization is deterministic and idempotent: normalizing
// an already-normalized URL yields the same string.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for input that is empty, not an absolute URL,
// or uses a scheme that is not acceptable as a redirect target.
var ErrInvalidURL = errors.New("invalid url")

// Schemes capable of script injection or local resource access (javascript,
// data, file, ...) are rejected. Only these are acceptable for a bio-link
// redirect target.
var allowedSchemes = map[string]struct{}{
	"http":   {},
	"https":  {},
	"mailto": {},
	"tel":    {},
}

// Normalize validates raw as a redirect destination and returns its
// canonical form: scheme and host lowercased, default ports stripped.
func Normalize(raw string) (string, error) {
	const op = "urlnorm.Normalize"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s: empty input: %w", op, ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrInvalidURL, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%s: not an absolute url: %w", op, ErrInvalidURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if _, ok := allowedSchemes[u.Scheme]; !ok {
		return "", fmt.Errorf("%s: disallowed scheme %q: %w", op, u.Scheme, ErrInvalidURL)
	}

	if u.Scheme == "http" || u.Scheme == "https" {
		if u.Host == "" {
			return "", fmt.Errorf("%s: missing host: %w", op, ErrInvalidURL)
		}

		u.Host = stripDefaultPort(strings.ToLower(u.Host), u.Scheme)
	}

	return u.String(), nil
}

func stripDefaultPort(host, scheme string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}
