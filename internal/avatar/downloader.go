package avatar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/micdrop/avatar-bridge/internal/cache"
	"github.com/micdrop/avatar-bridge/internal/config"
	"github.com/micdrop/avatar-bridge/internal/discord"
	"github.com/micdrop/avatar-bridge/internal/imaging"
)

// maxAvatarBytes bounds a CDN response body. The largest supported
// avatar render is far below this.
const maxAvatarBytes = 32 << 20

// Downloader resolves an identifier to its CDN URL, fetches and decodes
// the image, and persists it as the identifier's effect-0 cache entry.
// Effect variants are derived separately; only the downloader writes
// effect-0 entries.
type Downloader struct {
	resolver  discord.Resolver
	store     cache.Store
	codec     imaging.Codec
	gate      *Gate
	client    *http.Client
	userAgent string
}

func NewDownloader(resolver discord.Resolver, store cache.Store, codec imaging.Codec, gate *Gate, cdn config.CDNConfig, timeout time.Duration) Downloader {
	return Downloader{
		resolver:  resolver,
		store:     store,
		codec:     codec,
		gate:      gate,
		client:    &http.Client{Timeout: timeout},
		userAgent: cdn.UserAgent,
	}
}

// Download fetches and caches the avatar for an identifier, returning
// the effect-0 cache path. An empty path with a nil error means the
// identifier has no avatar: nothing was fetched and no entry was
// written. An existing entry for the identifier is overwritten.
func (d Downloader) Download(ctx context.Context, identifier, token string, size int) (string, error) {
	if err := d.gate.Wait(ctx); err != nil {
		return "", err
	}

	avatarURL, err := d.resolver.ResolveAvatarURL(ctx, identifier, token, size)
	if err != nil {
		return "", err
	}
	if avatarURL == "" {
		return "", nil
	}

	data, err := d.fetch(ctx, avatarURL)
	if err != nil {
		return "", err
	}

	img, err := d.codec.Decode(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := d.codec.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("could not encode avatar for caching: %w", err)
	}

	path := d.store.PathFor(identifier, 0)
	if err := d.store.Write(path, buf.Bytes()); err != nil {
		return "", err
	}

	log.Ctx(ctx).Debug().
		Str("identifier", identifier).
		Str("path", path).
		Msg("avatar cached")

	return path, nil
}

func (d Downloader) fetch(ctx context.Context, avatarURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build CDN request: %w", err)
	}

	// no auth header: the CDN wants a conventional browser user agent
	req.Header.Set("User-Agent", d.userAgent)

	res, err := d.client.Do(req)
	if err != nil {
		return nil, &discord.ConnectivityError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &discord.ConnectivityError{Err: fmt.Errorf("CDN responded %s", res.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxAvatarBytes))
	if err != nil {
		return nil, &discord.ConnectivityError{Err: err}
	}

	return data, nil
}
