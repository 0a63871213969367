// Command fetch downloads the avatars a manifest names into the local
// cache, deriving any requested effect variants. It is the batch
// counterpart to the HTTP facade, intended for pre-warming the cache
// before a slide generation run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/micdrop/avatar-bridge/internal/avatar"
	"github.com/micdrop/avatar-bridge/internal/cache"
	"github.com/micdrop/avatar-bridge/internal/config"
	"github.com/micdrop/avatar-bridge/internal/discord"
	"github.com/micdrop/avatar-bridge/internal/imaging"
	"github.com/micdrop/avatar-bridge/internal/manifest"
)

func main() {
	configureLogging()

	manifestPath := flag.String("manifest", "avatars.yaml", "path to the avatar manifest")
	flag.Parse()

	if err := run(context.Background(), *manifestPath); err != nil {
		log.Fatal().Err(err).Msg("fetch failed")
	}
}

func run(ctx context.Context, manifestPath string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	if cfg.Discord.Token == "" {
		return errors.New("DISCORD_BOT_TOKEN must be set")
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	log.Info().
		Str("manifest", manifestPath).
		Int("avatars", len(m.Avatars)).
		Str("cache", cfg.Cache.Dir).
		Msg("starting avatar fetch")

	store := cache.NewStore(cfg.Cache.Dir)
	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	gate := avatar.NewGate(cfg.Fetch.RequestsPerSecond)
	resolver := discord.NewResolver(cfg.Discord, cfg.CDN, timeout, discord.WithSleep(gate.Backoff))
	codec := imaging.PNG{}

	downloader := avatar.NewDownloader(resolver, store, codec, gate, cfg.CDN, timeout)
	processor := imaging.NewProcessor(store, codec)

	orchestrator := avatar.NewOrchestrator(downloader, cfg.Discord.Token, cfg.Fetch.Size, cfg.Fetch.Parallelism)
	results := orchestrator.Run(ctx, m.Identifiers())

	failed := 0
	for i, res := range results {
		l := log.With().Str("identifier", res.Identifier).Logger()

		switch {
		case res.Err != nil:
			failed++
			l.Error().Err(res.Err).Msg("avatar fetch failed")
			continue
		case res.Path == "":
			l.Info().Msg("no avatar for account")
			continue
		}

		if effect := m.Avatars[i].Effect; effect != imaging.EffectNone {
			if _, err := processor.Derive(res.Path, effect); err != nil {
				failed++
				l.Error().Err(err).Int("effect", effect).Msg("effect derivation failed")
				continue
			}
		}

		l.Info().Str("path", res.Path).Msg("avatar cached")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d avatars failed", failed, len(results))
	}

	log.Info().Int("avatars", len(results)).Msg("avatar fetch complete")
	return nil
}

func configureLogging() {
	log.Logger = log.
		Output(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}
