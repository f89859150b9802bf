package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Content   ContentConfig
	Encoder   EncoderConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Preload   PreloadConfig
	Batch     BatchConfig
	Archive   ArchiveConfig
	Storage   StorageConfig
	Events    EventsConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	MaxBodyBytes     int64   // limit of POST bodies
	RateLimit        float64 // batch and preload requests per second per client; 0 disables
	RateBurst        int
	RateClients      int  // clients tracked by the limiter
	Swagger          bool // serve the API docs under /swagger
}

// ContentConfig holds content record loading settings
type ContentConfig struct {
	Dir         string // directory of *.yaml records; empty uses the embedded seed
	UseEmbedded bool   // also load the embedded seed records when Dir is set
}

// EncoderConfig holds PDF encoder settings
type EncoderConfig struct {
	Backend          string        // native, chromedp, wkhtmltopdf
	Timeout          time.Duration // watchdog bound for one encode call
	StrictPageBudget bool          // fail instead of exceeding the variant page budget
	FallbackToNative bool          // use the native encoder when the configured backend is unavailable
	Chrome           ChromeConfig
	Wkhtmltopdf      WkhtmltopdfConfig
}

// ChromeConfig holds chromedp settings
type ChromeConfig struct {
	RemoteURL string
	NoSandbox bool
	Scale     float64
}

// WkhtmltopdfConfig holds wkhtmltopdf settings
type WkhtmltopdfConfig struct {
	BinaryPath   string
	DPI          int
	ImageQuality int
}

// CacheConfig holds artifact cache settings
type CacheConfig struct {
	Capacity       int           // maximum number of artifacts kept in memory
	PersistEnabled bool          // write artifacts through to Redis
	PersistTTL     time.Duration // lifetime of persisted artifacts
	KeyPrefix      string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PreloadConfig holds speculative generation settings
type PreloadConfig struct {
	Enabled  bool
	Delay    time.Duration // idle delay before the first step
	Interval time.Duration // minimum spacing between steps
	Variants []string      // variants warmed when a request names none
	IDs      []string      // records warmed at startup
}

// BatchConfig holds batch packaging settings
type BatchConfig struct {
	Brand       string
	Concurrency int
	MaxItems    int
}

// ArchiveConfig holds batch archive publishing settings
type ArchiveConfig struct {
	Publisher string        // none, filesystem, s3
	Dir       string        // filesystem publisher root
	BaseURL   string        // filesystem publisher public URL prefix
	URLExpiry time.Duration // lifetime of presigned S3 download URLs
	Retention time.Duration // filesystem archives older than this are removed; 0 keeps them
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool // scheme used when Endpoint has none
	UsePathStyle    bool
	Prefix          string
}

// EventsConfig holds analytics event bus settings
type EventsConfig struct {
	BufferSize int
	Workers    int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to export metrics and traces
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string        // Service name reported with metrics
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration // Metrics push interval
	SamplingRatio     float64       // Trace sampling ratio in [0, 1]
	ExportLogs        bool          // Also ship zap logs to the collector
	Profiling         ProfilingConfig
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string   // e.g. "http://pyroscope:4040"
	ApplicationName   string   // defaults to the telemetry service name
	BasicAuthUser     string   // Grafana Cloud only
	BasicAuthPassword string   // Grafana Cloud only
	ProfileTypes      []string // cpu, alloc_objects, alloc_space, inuse_objects, inuse_space, goroutines, mutex_count, mutex_duration, block_count, block_duration
	SpanProfiles      bool     // label CPU samples with the active span id
}

// Load reads configuration from config.toml (if present) and DOCGEN_* environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DOCGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true need an explicit default so that
	// "unset" and "false" stay distinguishable.
	v.SetDefault("encoder.fallback_to_native", true)
	v.SetDefault("preload.enabled", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("http.rate_limit", 2.0)
	v.SetDefault("http.swagger", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			MaxBodyBytes:     v.GetInt64("http.max_body_bytes"),
			RateLimit:        v.GetFloat64("http.rate_limit"),
			RateBurst:        v.GetInt("http.rate_burst"),
			RateClients:      v.GetInt("http.rate_clients"),
			Swagger:          v.GetBool("http.swagger"),
		},
		Content: ContentConfig{
			Dir:         v.GetString("content.dir"),
			UseEmbedded: v.GetBool("content.use_embedded"),
		},
		Encoder: EncoderConfig{
			Backend:          v.GetString("encoder.backend"),
			Timeout:          v.GetDuration("encoder.timeout"),
			StrictPageBudget: v.GetBool("encoder.strict_page_budget"),
			FallbackToNative: v.GetBool("encoder.fallback_to_native"),
			Chrome: ChromeConfig{
				RemoteURL: v.GetString("encoder.chrome.remote_url"),
				NoSandbox: v.GetBool("encoder.chrome.no_sandbox"),
				Scale:     v.GetFloat64("encoder.chrome.scale"),
			},
			Wkhtmltopdf: WkhtmltopdfConfig{
				BinaryPath:   v.GetString("encoder.wkhtmltopdf.binary_path"),
				DPI:          v.GetInt("encoder.wkhtmltopdf.dpi"),
				ImageQuality: v.GetInt("encoder.wkhtmltopdf.image_quality"),
			},
		},
		Cache: CacheConfig{
			Capacity:       v.GetInt("cache.capacity"),
			PersistEnabled: v.GetBool("cache.persist_enabled"),
			PersistTTL:     v.GetDuration("cache.persist_ttl"),
			KeyPrefix:      v.GetString("cache.key_prefix"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Preload: PreloadConfig{
			Enabled:  v.GetBool("preload.enabled"),
			Delay:    v.GetDuration("preload.delay"),
			Interval: v.GetDuration("preload.interval"),
			Variants: v.GetStringSlice("preload.variants"),
			IDs:      v.GetStringSlice("preload.ids"),
		},
		Batch: BatchConfig{
			Brand:       v.GetString("batch.brand"),
			Concurrency: v.GetInt("batch.concurrency"),
			MaxItems:    v.GetInt("batch.max_items"),
		},
		Archive: ArchiveConfig{
			Publisher: v.GetString("archive.publisher"),
			Dir:       v.GetString("archive.dir"),
			BaseURL:   v.GetString("archive.base_url"),
			URLExpiry: v.GetDuration("archive.url_expiry"),
			Retention: v.GetDuration("archive.retention"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UseSSL:          v.GetBool("storage.use_ssl"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			Prefix:          v.GetString("storage.prefix"),
		},
		Events: EventsConfig{
			BufferSize: v.GetInt("events.buffer_size"),
			Workers:    v.GetInt("events.workers"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			Profiling: ProfilingConfig{
				Enabled:           v.GetBool("telemetry.profiling.enabled"),
				ServerAddress:     v.GetString("telemetry.profiling.server_address"),
				ApplicationName:   v.GetString("telemetry.profiling.application_name"),
				BasicAuthUser:     v.GetString("telemetry.profiling.basic_auth_user"),
				BasicAuthPassword: v.GetString("telemetry.profiling.basic_auth_password"),
				ProfileTypes:      v.GetStringSlice("telemetry.profiling.profile_types"),
				SpanProfiles:      v.GetBool("telemetry.profiling.span_profiles"),
			},
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fichesante-docgen"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// batches of 4-page guides can take a while to encode
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 64 << 10
	}
	if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = 5
	}
	if cfg.HTTP.RateClients == 0 {
		cfg.HTTP.RateClients = 10000
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "If-None-Match"}
	}
	if cfg.Encoder.Backend == "" {
		cfg.Encoder.Backend = "native"
	}
	if cfg.Encoder.Timeout == 0 {
		cfg.Encoder.Timeout = 45 * time.Second
	}
	if cfg.Encoder.Chrome.Scale == 0 {
		cfg.Encoder.Chrome.Scale = 1.0
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 64
	}
	if cfg.Cache.PersistTTL == 0 {
		cfg.Cache.PersistTTL = 7 * 24 * time.Hour
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "docgen:artifact:"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Preload.Delay == 0 {
		cfg.Preload.Delay = 2 * time.Second
	}
	if cfg.Preload.Interval == 0 {
		cfg.Preload.Interval = 250 * time.Millisecond
	}
	if len(cfg.Preload.Variants) == 0 {
		cfg.Preload.Variants = []string{"1page"}
	}
	if cfg.Batch.Brand == "" {
		cfg.Batch.Brand = "fichesante"
	}
	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = 4
	}
	if cfg.Batch.MaxItems == 0 {
		cfg.Batch.MaxItems = 100
	}
	if cfg.Archive.Publisher == "" {
		cfg.Archive.Publisher = "none"
	}
	if cfg.Archive.BaseURL == "" {
		cfg.Archive.BaseURL = "/api/v1/archives"
	}
	if cfg.Archive.URLExpiry == 0 {
		cfg.Archive.URLExpiry = time.Hour
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "eu-west-3"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "batches/"
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 256
	}
	if cfg.Events.Workers == 0 {
		cfg.Events.Workers = 1
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "fichesante-docgen"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 15 * time.Second
	}
	if cfg.Telemetry.Profiling.ApplicationName == "" {
		cfg.Telemetry.Profiling.ApplicationName = cfg.Telemetry.ServiceName
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Encoder.Backend {
	case "native", "chromedp", "wkhtmltopdf":
	default:
		return fmt.Errorf("encoder.backend must be one of native, chromedp, wkhtmltopdf; got %q", c.Encoder.Backend)
	}
	if c.Encoder.Timeout < 0 {
		return fmt.Errorf("encoder.timeout cannot be negative")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit cannot be negative")
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be within [0, 1], got %v", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.Profiling.Enabled && c.Telemetry.Profiling.ServerAddress == "" {
		return fmt.Errorf("telemetry.profiling.server_address is required when profiling is enabled")
	}
	if c.Batch.MaxItems < 1 {
		return fmt.Errorf("batch.max_items must be positive, got %d", c.Batch.MaxItems)
	}
	for _, v := range c.Preload.Variants {
		if v != "1page" && v != "4pages" {
			return fmt.Errorf("preload.variants contains unknown variant %q", v)
		}
	}

	switch c.Archive.Publisher {
	case "none":
	case "filesystem":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir is required for the filesystem publisher")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 publisher")
		}
	default:
		return fmt.Errorf("archive.publisher must be one of none, filesystem, s3; got %q", c.Archive.Publisher)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Archive.Publisher == "s3" && c.Storage.AccessKeyID != "" && c.Storage.SecretAccessKey == "" {
			return fmt.Errorf("storage.secret_access_key is required when storage.access_key_id is set")
		}
	}

	return nil
}
