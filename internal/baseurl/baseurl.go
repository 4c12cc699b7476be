// Package baseurl resolves the public origin the service is reachable at.
//
// Short URLs are persisted and shared, so the origin baked into them must
// stay stable even though the compute platform may issue a different
// hostname per deployment. Resolution is an ordered chain of providers; the
// first one that yields an origin wins:
//
//  1. an explicitly configured application URL,
//  2. the fixed production origin when running in the production environment,
//  3. the platform-provided deployment URL, but only when it matches the
//     expected production hostname pattern (ephemeral preview hostnames must
//     never leak into shared links),
//  4. a localhost fallback for local development.
package baseurl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Provider yields a candidate origin. ok reports whether the provider
// applies in the current environment.
type Provider func() (origin string, ok bool)

// Explicit returns the configured application URL when one is set.
func Explicit(appURL string) Provider {
	return func() (string, bool) {
		if appURL == "" {
			return "", false
		}
		return appURL, true
	}
}

// Production returns the fixed production origin when running in the given
// production environment name.
func Production(env, productionEnv, origin string) Provider {
	return func() (string, bool) {
		if env != productionEnv || origin == "" {
			return "", false
		}
		return origin, true
	}
}

// Deployment returns the platform-provided deployment URL when its host
// matches the expected production hostname pattern.
func Deployment(deploymentURL string, hostPattern *regexp.Regexp) Provider {
	return func() (string, bool) {
		if deploymentURL == "" || hostPattern == nil {
			return "", false
		}

		u, err := url.Parse(withScheme(deploymentURL))
		if err != nil || !hostPattern.MatchString(u.Hostname()) {
			return "", false
		}

		return deploymentURL, true
	}
}

// Localhost is the terminal fallback for local development.
func Localhost(port int) Provider {
	return func() (string, bool) {
		return fmt.Sprintf("http://localhost:%d", port), true
	}
}

// Resolver holds an ordered provider chain.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a resolver that consults providers in the given order.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// Origin returns the first provider's origin, reduced to scheme://host with
// no path or trailing slash.
func (r *Resolver) Origin() string {
	for _, p := range r.providers {
		if origin, ok := p(); ok {
			return canonical(origin)
		}
	}

	return ""
}

func canonical(origin string) string {
	u, err := url.Parse(withScheme(origin))
	if err != nil || u.Host == "" {
		return strings.TrimRight(origin, "/")
	}

	return u.Scheme + "://" + u.Host
}

func withScheme(s string) string {
	if strings.Contains(s, "://") {
		return s
	}
	return "https://" + s
}
