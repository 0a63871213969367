package cache

import (
	"time"

	"github.com/maypok86/otter/v2"
)

// Links memoizes lookup results by identifier so hot identifiers don't
// repeatedly hit the rate-limited lookup endpoint. A resolved CDN URL
// is stored as-is; "no avatar available" is a valid, cacheable outcome
// and is stored as the empty string.
//
// The cache is non-locking: concurrent misses for the same identifier
// may each perform a lookup, with the last result winning. Lookups are
// cheap relative to the cost of locking every request.
type Links struct {
	cache *otter.Cache[string, string]
}

// NewLinks creates a resolved-link cache with the given entry TTL and
// maximum size.
func NewLinks(ttl time.Duration, maxEntries int) *Links {
	cache := otter.Must(&otter.Options[string, string]{
		MaximumSize:      maxEntries,
		ExpiryCalculator: otter.ExpiryCreating[string, string](ttl),
	})

	return &Links{cache: cache}
}

// Get returns the memoized resolution for an identifier. The URL is
// empty when the identifier is known to have no avatar.
func (l *Links) Get(identifier string) (url string, found bool) {
	entry, ok := l.cache.GetEntry(identifier)
	if !ok {
		return "", false
	}
	return entry.Value, true
}

// Set memoizes a resolution. Pass an empty URL to record that the
// identifier has no avatar.
func (l *Links) Set(identifier, url string) {
	l.cache.Set(identifier, url)
}

// Invalidate drops the memoized resolution for an identifier.
func (l *Links) Invalidate(identifier string) {
	l.cache.Invalidate(identifier)
}
