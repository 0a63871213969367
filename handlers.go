package main

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/micdrop/avatar-bridge/internal/avatar"
	"github.com/micdrop/avatar-bridge/internal/cache"
	"github.com/micdrop/avatar-bridge/internal/config"
	"github.com/micdrop/avatar-bridge/internal/discord"
	"github.com/micdrop/avatar-bridge/internal/imaging"
)

// handleGetAvatar serves an avatar by identifier, fetching and caching
// it on a miss. The optional "size" and "effect" query parameters
// select the CDN render size and the variant to derive.
func handleGetAvatar(cfg config.Config, downloader avatar.Downloader, processor imaging.Processor, store cache.Store, links *cache.Links) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		identifier := r.PathValue("identifier")

		size := cfg.Fetch.Size
		if v := r.URL.Query().Get("size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || !config.SupportedSize(n) {
				requestError(w, http.StatusBadRequest)
				return
			}
			size = n
		}

		effect := imaging.EffectNone
		if v := r.URL.Query().Get("effect"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				requestError(w, http.StatusBadRequest)
				return
			}
			effect = n
		}

		basePath := store.PathFor(identifier, 0)
		if !store.Exists(basePath) {
			// a memoized empty resolution means a recent lookup already
			// established there is no avatar
			if url, found := links.Get(identifier); found && url == "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			path, err := downloader.Download(r.Context(), identifier, cfg.Discord.Token, size)
			if err != nil {
				log.Info().Err(err).Str("identifier", identifier).Msg("avatar download failed")
				failureResponse(w, err)
				return
			}

			if path == "" {
				links.Set(identifier, "")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			basePath = path
		}

		servePath, err := processor.Derive(basePath, effect)
		if err != nil {
			log.Info().Err(err).Str("identifier", identifier).Msg("effect derivation failed")
			requestError(w, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, servePath)
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// failureResponse maps the pipeline's failure taxonomy onto response
// statuses. A rate-limited failure additionally reports the wait the
// upstream asked for.
func failureResponse(w http.ResponseWriter, err error) {
	var limited *discord.RateLimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		requestError(w, http.StatusServiceUnavailable)
		return
	}

	requestError(w, failureStatus(err))
}

func failureStatus(err error) int {
	var (
		unknown   *discord.UnknownUserError
		invalid   *discord.InvalidTokenError
		conn      *discord.ConnectivityError
		apiErr    *discord.APIError
		decodeErr *imaging.DecodeError
	)

	switch {
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &invalid),
		errors.As(err, &conn),
		errors.As(err, &apiErr),
		errors.As(err, &decodeErr):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody drains the request body by reading and discarding
// the contents, which matters for connection reuse with HTTP/1
// clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5kb max: after this we'll assume the client is broken or
		// malicious and close the connection
		io.CopyN(io.Discard, r.Body, 5*1024)
	}
}
