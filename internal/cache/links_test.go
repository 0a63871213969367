package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinksGet_NotFound(t *testing.T) {
	links := NewLinks(time.Minute, 100)

	url, found := links.Get("42")
	assert.False(t, found)
	assert.Empty(t, url)
}

func TestLinksSetAndGet(t *testing.T) {
	links := NewLinks(time.Minute, 100)

	links.Set("42", "https://cdn.example.com/avatars/42/abc.png?size=256")

	url, found := links.Get("42")
	assert.True(t, found)
	assert.Equal(t, "https://cdn.example.com/avatars/42/abc.png?size=256", url)
}

func TestLinksSet_NoAvatarOutcome(t *testing.T) {
	links := NewLinks(time.Minute, 100)

	links.Set("42", "")

	url, found := links.Get("42")
	assert.True(t, found)
	assert.Empty(t, url)
}

func TestLinksInvalidate(t *testing.T) {
	links := NewLinks(time.Minute, 100)

	links.Set("42", "https://cdn.example.com/avatars/42/abc.png")
	links.Invalidate("42")

	_, found := links.Get("42")
	assert.False(t, found)
}

func TestLinksTTLExpiry(t *testing.T) {
	// Use very short TTL for testing
	links := NewLinks(100*time.Millisecond, 100)

	links.Set("42", "https://cdn.example.com/avatars/42/abc.png")

	_, found := links.Get("42")
	require.True(t, found)

	time.Sleep(150 * time.Millisecond)

	_, found = links.Get("42")
	assert.False(t, found)
}
