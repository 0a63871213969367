package config

import (
	"context"
	"fmt"
	"slices"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Discord DiscordConfig
	CDN     CDNConfig
	Cache   CacheConfig
	Fetch   FetchConfig
	Observe ObserveConfig
	Server  ServerConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

type DiscordConfig struct {
	APIURL string `env:"DISCORD_API_URL, default=https://discord.com/api/v9"`

	// Token is the bot authorization token for the user lookup endpoint.
	// It is treated as opaque: validity is only discoverable from the API
	// response.
	Token string `env:"DISCORD_BOT_TOKEN"`
}

type CDNConfig struct {
	URL string `env:"DISCORD_CDN_URL, default=https://cdn.discordapp.com"`

	// UserAgent is sent with CDN requests. The CDN rejects requests
	// without a conventional browser-like user agent.
	UserAgent string `env:"DISCORD_CDN_USER_AGENT, default=Mozilla/5.0"`
}

// CacheConfig locates the on-disk avatar cache and sizes the in-memory
// resolved-link cache in front of the lookup endpoint.
type CacheConfig struct {
	Dir            string `env:"AVATAR_CACHE_DIR, default=avatars"`
	LinkTTLSeconds int    `env:"AVATAR_LINK_TTL_SECS, default=300"`
	LinkMaxEntries int    `env:"AVATAR_LINK_MAX_ENTRIES, default=10000"`
}

type FetchConfig struct {
	// Size is the avatar pixel size requested from the CDN. Must be one
	// of the supported power-of-two sizes.
	Size           int `env:"AVATAR_SIZE, default=256"`
	TimeoutSeconds int `env:"AVATAR_FETCH_TIMEOUT_SECS, default=10"`

	// Parallelism bounds concurrent identifier processing. The default
	// processes identifiers strictly sequentially.
	Parallelism int `env:"AVATAR_FETCH_PARALLELISM, default=1"`

	// RequestsPerSecond paces lookup requests per credential. The default
	// spaces requests ~10ms apart, reducing the chance of tripping the
	// endpoint's rate limit in the first place.
	RequestsPerSecond float64 `env:"AVATAR_REQUESTS_PER_SECOND, default=100"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=avatar-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

// supportedSizes are the pixel sizes the CDN will render: powers of two
// from 16 to 4096.
var supportedSizes = []int{16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// SupportedSize reports whether the CDN can serve an avatar at the
// requested pixel size.
func SupportedSize(size int) bool {
	return slices.Contains(supportedSizes, size)
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Fetch.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid fetch configuration: %w", err)
	}

	err = cfg.Cache.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the fetch configuration is usable.
func (c *FetchConfig) Validate() error {
	if !SupportedSize(c.Size) {
		return fmt.Errorf("AVATAR_SIZE must be a power of two between 16 and 4096, got %d", c.Size)
	}

	if c.Parallelism < 1 {
		return fmt.Errorf("AVATAR_FETCH_PARALLELISM must be at least 1, got %d", c.Parallelism)
	}

	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("AVATAR_REQUESTS_PER_SECOND must be positive, got %g", c.RequestsPerSecond)
	}

	return nil
}

// Validate checks that the cache configuration is usable.
func (c *CacheConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("AVATAR_CACHE_DIR must not be empty")
	}

	if c.LinkMaxEntries < 1 {
		return fmt.Errorf("AVATAR_LINK_MAX_ENTRIES must be at least 1, got %d", c.LinkMaxEntries)
	}

	return nil
}
