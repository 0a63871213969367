package avatar

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/micdrop/avatar-bridge/internal/discord"
)

// Result is the per-identifier outcome handed to the caller. The
// orchestrator classifies failures but never formats, logs, or
// suppresses them: rendering reports is the diagnostics layer's job.
type Result struct {
	Identifier string
	Path       string // empty when the identifier has no avatar
	Err        error
}

// Orchestrator runs the resolve, download, cache sequence for a batch
// of identifiers sharing one credential.
type Orchestrator struct {
	downloader  Downloader
	token       string
	size        int
	parallelism int
}

func NewOrchestrator(downloader Downloader, token string, size, parallelism int) Orchestrator {
	if parallelism < 1 {
		parallelism = 1
	}

	return Orchestrator{
		downloader:  downloader,
		token:       token,
		size:        size,
		parallelism: parallelism,
	}
}

// Run downloads avatars for each identifier, returning one result per
// identifier in input order. Identifiers are independent and processed
// with bounded parallelism; a per-identifier failure does not affect
// its siblings. The exception is an invalid credential, which cancels
// remaining work since every further attempt would fail identically.
func (o Orchestrator) Run(ctx context.Context, identifiers []string) []Result {
	results := make([]Result, len(identifiers))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var group errgroup.Group
	group.SetLimit(o.parallelism)

	for i, identifier := range identifiers {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Identifier: identifier, Err: err}
				return nil
			}

			path, err := o.downloader.Download(ctx, identifier, o.token, o.size)
			results[i] = Result{Identifier: identifier, Path: path, Err: err}

			var invalid *discord.InvalidTokenError
			if errors.As(err, &invalid) {
				cancel()
			}

			return nil
		})
	}

	_ = group.Wait()

	return results
}
