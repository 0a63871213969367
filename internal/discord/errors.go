package discord

import (
	"fmt"
	"time"
)

// Failure taxonomy for avatar link resolution. Each error carries the
// raw response body (and the credential where relevant) so the caller's
// diagnostics layer can render a useful report: classification happens
// here, presentation and redaction do not.

// ConnectivityError reports a transport-level failure: the request
// never completed, so nothing about the credential or identifier can be
// concluded. Retrying the whole pipeline is the caller's decision.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("discord: connectivity failure: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// InvalidTokenError reports that the API rejected the bot token. The
// token is unusable: no retry with the same credential can succeed.
type InvalidTokenError struct {
	Token string
	Body  string
}

func (e *InvalidTokenError) Error() string {
	return "discord: bot token rejected by API"
}

// UnknownUserError reports that the API has no account for the
// identifier. Permanent for this identifier; processing of other
// identifiers is unaffected.
type UnknownUserError struct {
	Identifier string
	Body       string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("discord: unknown user %s", e.Identifier)
}

// RateLimitedError reports that the lookup was rate limited again after
// the single in-resolver retry. RetryAfter is the wait the API asked
// for on the second refusal.
type RateLimitedError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("discord: rate limited after retry (retry_after=%s)", e.RetryAfter)
}

// APIError reports a response that fits none of the known failure
// shapes. The raw body is retained for diagnosis.
type APIError struct {
	Token string
	Body  string
}

func (e *APIError) Error() string {
	return "discord: unexpected API response"
}
