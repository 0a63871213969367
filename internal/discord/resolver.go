package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/micdrop/avatar-bridge/internal/config"
)

// maxLookupBody bounds how much of a lookup response is read. User
// payloads and error bodies are tiny; anything larger is broken.
const maxLookupBody = 1 << 20

// Resolver turns a user identifier into a downloadable CDN URL via the
// authenticated user lookup endpoint, classifying the endpoint's
// heterogeneous failure responses into the typed errors of this
// package.
type Resolver struct {
	apiURL string
	cdnURL string
	client *http.Client
	sleep  func(context.Context, time.Duration) error
}

type Option func(*Resolver)

// WithHTTPClient replaces the default lookup client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithSleep replaces the wait used when the endpoint demands a
// rate-limit pause. Production wires this to the credential's pacing
// gate so concurrent retries can't pile up; tests use it as a mockable
// clock.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Resolver) {
		r.sleep = sleep
	}
}

func NewResolver(discord config.DiscordConfig, cdn config.CDNConfig, timeout time.Duration, opts ...Option) Resolver {
	r := Resolver{
		apiURL: strings.TrimSuffix(discord.APIURL, "/"),
		cdnURL: strings.TrimSuffix(cdn.URL, "/"),
		client: &http.Client{Timeout: timeout},
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(&r)
	}

	return r
}

// IsNumeric reports whether an identifier passes the numeric-format
// check applied before any network call. Anything float-parseable is
// accepted, matching the lenient check applied to spreadsheet-sourced
// identifiers upstream.
func IsNumeric(identifier string) bool {
	_, err := strconv.ParseFloat(identifier, 64)
	return err == nil
}

// userPayload covers both response shapes of the lookup endpoint: a
// user object carrying an avatar hash, or an error object with a
// message and, for rate limits, a required wait in seconds.
type userPayload struct {
	Avatar     json.RawMessage `json:"avatar"`
	Message    string          `json:"message"`
	RetryAfter float64         `json:"retry_after"`
}

// ResolveAvatarURL resolves an identifier to a CDN URL for an avatar of
// the given pixel size. An empty URL with a nil error means there is no
// avatar to fetch; a non-numeric identifier short-circuits to that
// outcome without touching the network.
//
// A rate-limited lookup waits the duration the API demands and retries
// exactly once, and the retried outcome is propagated to the caller.
func (r Resolver) ResolveAvatarURL(ctx context.Context, identifier, token string, size int) (string, error) {
	if !IsNumeric(identifier) {
		return "", nil
	}

	return r.lookup(ctx, identifier, token, size, true)
}

func (r Resolver) lookup(ctx context.Context, identifier, token string, size int, allowRetry bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/%s", r.apiURL, identifier), nil)
	if err != nil {
		return "", fmt.Errorf("could not build lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+token)

	res, err := r.client.Do(req)
	if err != nil {
		return "", &ConnectivityError{Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxLookupBody))
	if err != nil {
		return "", &ConnectivityError{Err: err}
	}

	var payload userPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &APIError{Token: token, Body: string(body)}
	}

	// The avatar field being present means the lookup succeeded; it is
	// null for accounts that exist but have no avatar set.
	if payload.Avatar != nil {
		var hash *string
		if err := json.Unmarshal(payload.Avatar, &hash); err != nil {
			return "", &APIError{Token: token, Body: string(body)}
		}
		if hash == nil || *hash == "" {
			return "", nil
		}
		return fmt.Sprintf("%s/avatars/%s/%s.png?size=%d", r.cdnURL, identifier, *hash, size), nil
	}

	return r.classify(ctx, identifier, token, size, res.StatusCode, payload, body, allowRetry)
}

// classify maps an avatar-less response to the failure taxonomy. The
// HTTP status is authoritative; message text is only consulted when the
// status is inconclusive, as the wording is not a stable contract.
func (r Resolver) classify(ctx context.Context, identifier, token string, size int, status int, payload userPayload, body []byte, allowRetry bool) (string, error) {
	message := strings.ToLower(payload.Message)

	switch {
	case status == http.StatusUnauthorized || strings.Contains(message, "401: unauthorized"):
		return "", &InvalidTokenError{Token: token, Body: string(body)}

	case status == http.StatusTooManyRequests || strings.Contains(message, "limit"):
		wait := time.Duration(payload.RetryAfter * float64(time.Second))
		if !allowRetry {
			return "", &RateLimitedError{RetryAfter: wait, Body: string(body)}
		}

		log.Ctx(ctx).Info().
			Str("identifier", identifier).
			Dur("retry_after", wait).
			Msg("lookup rate limited, waiting before single retry")

		if err := r.sleep(ctx, wait); err != nil {
			return "", err
		}

		return r.lookup(ctx, identifier, token, size, false)

	case status == http.StatusNotFound || strings.Contains(message, "unknown user"):
		return "", &UnknownUserError{Identifier: identifier, Body: string(body)}

	default:
		return "", &APIError{Token: token, Body: string(body)}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
