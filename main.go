package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/micdrop/avatar-bridge/internal/avatar"
	"github.com/micdrop/avatar-bridge/internal/cache"
	"github.com/micdrop/avatar-bridge/internal/config"
	"github.com/micdrop/avatar-bridge/internal/discord"
	"github.com/micdrop/avatar-bridge/internal/imaging"
	"github.com/micdrop/avatar-bridge/internal/observe"
	"github.com/micdrop/avatar-bridge/internal/server"
)

func configureServerRoutes(cfg config.Config) (http.Handler, error) {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	// Requests carry no body; anything substantial is abuse.
	requestLimitBytes := int64(4 << 10) // 4 KB
	standardRouteMiddleware := alice.New(maxRequestSize(requestLimitBytes))

	// assemble the avatar pipeline and its caches
	store := cache.NewStore(cfg.Cache.Dir)
	links := cache.NewLinks(
		time.Duration(cfg.Cache.LinkTTLSeconds)*time.Second,
		cfg.Cache.LinkMaxEntries,
	)

	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	gate := avatar.NewGate(cfg.Fetch.RequestsPerSecond)

	// reactive rate-limit waits hold the gate for the whole credential
	resolver := discord.NewResolver(cfg.Discord, cfg.CDN, timeout, discord.WithSleep(gate.Backoff))
	codec := imaging.PNG{}

	downloader := avatar.NewDownloader(resolver, store, codec, gate, cfg.CDN, timeout)
	processor := imaging.NewProcessor(store, codec)

	avatarHandler := standardRouteMiddleware.Then(handleGetAvatar(cfg, downloader, processor, store, links))
	mux.Handle("GET /avatar/{identifier}", avatarHandler)

	// healthchecks are not included in telemetry
	muxWithoutTelemetry.Handle("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck()))

	return mux, nil
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping the default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	handler, err := configureServerRoutes(cfg)
	if err != nil {
		return fmt.Errorf("server routing configuration failed: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	hooks := &server.ShutdownHooks{}
	hooks.AddContext("telemetry", shutdownTelemetry)

	err = server.Serve(srv, time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second, hooks)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
