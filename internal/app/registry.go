package app

import (
	"fmt"
	"regexp"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// HandlerFactory builds (or returns) the handler for a platform
type HandlerFactory func() domain.PlatformHandler

// registration is one (platform, patterns, factory) record. Records live
// for the process lifetime; there is no hot-unregistration.
type registration struct {
	platform domain.Platform
	patterns []*regexp.Regexp
	factory  HandlerFactory
}

// Registry maps URLs to platform handlers by pattern matching. Patterns
// are tried in registration order and the first match wins, so
// registration order is authoritative for ambiguous URLs; there is no
// specificity scoring. Registration happens single-threaded at startup;
// Resolve is read-only and safe for concurrent callers afterwards.
type Registry struct {
	registrations []registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a platform's URL patterns and handler factory. Duplicate
// platform IDs and invalid patterns are rejected.
func (r *Registry) Register(platform domain.Platform, urlPatterns []string, factory HandlerFactory) error {
	if platform == "" {
		return fmt.Errorf("platform id must not be empty")
	}
	if len(urlPatterns) == 0 {
		return fmt.Errorf("platform %s: at least one URL pattern required", platform)
	}
	if factory == nil {
		return fmt.Errorf("platform %s: handler factory required", platform)
	}
	for _, reg := range r.registrations {
		if reg.platform == platform {
			return fmt.Errorf("platform %s already registered", platform)
		}
	}

	compiled := make([]*regexp.Regexp, 0, len(urlPatterns))
	for _, p := range urlPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("platform %s: invalid URL pattern %q: %w", platform, p, err)
		}
		compiled = append(compiled, re)
	}

	r.registrations = append(r.registrations, registration{
		platform: platform,
		patterns: compiled,
		factory:  factory,
	})
	return nil
}

// Resolve returns the handler for the first registration whose pattern
// set matches the URL, or NotSupportedError naming the URL
func (r *Registry) Resolve(url string) (domain.PlatformHandler, error) {
	for _, reg := range r.registrations {
		for _, re := range reg.patterns {
			if re.MatchString(url) {
				return reg.factory(), nil
			}
		}
	}
	return nil, &domain.NotSupportedError{URL: url}
}

// Platforms lists registered platform IDs in registration order
func (r *Registry) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(r.registrations))
	for _, reg := range r.registrations {
		out = append(out, reg.platform)
	}
	return out
}
