// Package config loads and validates collector configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all collector configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Media    MediaConfig    `mapstructure:"media"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Humanize HumanizeConfig `mapstructure:"humanize"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Target   TargetConfig   `mapstructure:"target"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Records  RecordsConfig  `mapstructure:"records"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Hash     HashConfig     `mapstructure:"hash"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Export   ExportConfig   `mapstructure:"export"`
	Ops      OpsConfig      `mapstructure:"ops"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FeedConfig selects the public channel to read.
type FeedConfig struct {
	Channel        string `mapstructure:"channel"`
	BaseURL        string `mapstructure:"base_url"`
	Limit          int    `mapstructure:"limit"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MediaConfig configures photo downloads.
type MediaConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	Retries        int `mapstructure:"retries"`
	MaxBytes       int `mapstructure:"max_bytes"`
}

// BrowserConfig configures the browsing sessions used for resolution.
type BrowserConfig struct {
	Engines       []string          `mapstructure:"engines"`
	ExecPaths     map[string]string `mapstructure:"exec_paths"`
	Headless      bool              `mapstructure:"headless"`
	Stealth       bool              `mapstructure:"stealth"`
	NavTimeoutSec int               `mapstructure:"nav_timeout_seconds"`
	// Seed fixes profile and humanization randomness when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

// ProxyConfig is the mandatory upstream proxy for every session.
type ProxyConfig struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// HumanizeConfig scales synthetic interaction.
type HumanizeConfig struct {
	PauseScale   float64 `mapstructure:"pause_scale"`
	Interactions int     `mapstructure:"interactions"`
}

// ResolverConfig controls captcha detection and pacing between candidates.
type ResolverConfig struct {
	CaptchaSelector     string  `mapstructure:"captcha_selector"`
	CandidateDelayMinMs int     `mapstructure:"candidate_delay_min_ms"`
	CandidateDelayMaxMs int     `mapstructure:"candidate_delay_max_ms"`
	DomainQPS           float64 `mapstructure:"domain_qps"`
	DomainBurst         int     `mapstructure:"domain_burst"`
}

// TargetConfig lists the lowercase substrings a link must contain to qualify.
type TargetConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// StorageConfig selects the media object store.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	ContentType   string `mapstructure:"content_type"`
	BaseDir       string `mapstructure:"base_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// RecordsConfig selects the record store.
type RecordsConfig struct {
	Backend       string `mapstructure:"backend"`
	Table         string `mapstructure:"table"`
	DSN           string `mapstructure:"dsn"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	BaseDir       string `mapstructure:"base_dir"`
}

// SupabaseConfig holds the project URL and service key.
type SupabaseConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

// HashConfig picks the media digest.
type HashConfig struct {
	Algorithm string `mapstructure:"algorithm"`
}

// PubSubConfig holds metadata for per-record notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ExportConfig sets where the end-of-run batch is written.
type ExportConfig struct {
	Path string `mapstructure:"path"`
}

// OpsConfig enables the health/metrics server when Addr is set.
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

var legacyEnv = map[string]string{
	"proxy.server":   "PROXY_SERVER",
	"proxy.username": "PROXY_USERNAME",
	"proxy.password": "PROXY_PASSWORD",
	"supabase.url":   "SUPABASE_URL",
	"supabase.key":   "SUPABASE_SERVICE_KEY",
}

// Load builds a Config from an optional dotenv file, the environment and an
// optional config file. envFiles default to ".env"; missing files are ignored.
func Load(path string, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, legacy := range legacyEnv {
		envKey := "COLLECTOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Export.Path == "" {
		cfg.Export.Path = fmt.Sprintf("channel_messages_%s.json", cfg.Feed.Channel)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("feed.channel", "haregakaniti")
	v.SetDefault("feed.base_url", "https://t.me")
	v.SetDefault("feed.limit", 100)
	v.SetDefault("feed.user_agent", "")
	v.SetDefault("feed.timeout_seconds", 30)
	v.SetDefault("media.timeout_seconds", 30)
	v.SetDefault("media.retries", 2)
	v.SetDefault("media.max_bytes", 20<<20)
	v.SetDefault("browser.engines", []string{"chrome", "edge"})
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.nav_timeout_seconds", 120)
	v.SetDefault("browser.seed", 0)
	v.SetDefault("proxy.server", "")
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")
	v.SetDefault("humanize.pause_scale", 1.0)
	v.SetDefault("humanize.interactions", 2)
	v.SetDefault("resolver.captcha_selector", "input#captchacharacters")
	v.SetDefault("resolver.candidate_delay_min_ms", 2000)
	v.SetDefault("resolver.candidate_delay_max_ms", 5000)
	v.SetDefault("resolver.domain_qps", 0.5)
	v.SetDefault("resolver.domain_burst", 1)
	v.SetDefault("target.patterns", []string{"amazon", "amzn"})
	v.SetDefault("storage.backend", "supabase")
	v.SetDefault("storage.bucket", "image-storage")
	v.SetDefault("storage.prefix", "images")
	v.SetDefault("storage.content_type", "image/jpeg")
	v.SetDefault("storage.base_dir", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("records.backend", "supabase")
	v.SetDefault("records.table", "telegram_messages")
	v.SetDefault("records.dsn", "")
	v.SetDefault("records.max_conns", 4)
	v.SetDefault("records.mongo_uri", "")
	v.SetDefault("records.mongo_database", "")
	v.SetDefault("records.base_dir", "")
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("hash.algorithm", "md5")
	v.SetDefault("pubsub.backend", "pubsub")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("export.path", "")
	v.SetDefault("ops.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Feed.Channel) == "" {
		return fmt.Errorf("feed.channel is required")
	}
	if c.Feed.Limit <= 0 {
		return fmt.Errorf("feed.limit must be > 0")
	}
	if c.Proxy.Server == "" {
		return fmt.Errorf("proxy.server is required")
	}
	if len(c.Browser.Engines) == 0 {
		return fmt.Errorf("browser.engines must not be empty")
	}
	for _, e := range c.Browser.Engines {
		if e != "chrome" && e != "edge" {
			return fmt.Errorf("browser.engines: unsupported engine %q", e)
		}
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Humanize.PauseScale < 0 {
		return fmt.Errorf("humanize.pause_scale must be >= 0")
	}
	if c.Resolver.CandidateDelayMinMs < 0 || c.Resolver.CandidateDelayMaxMs < c.Resolver.CandidateDelayMinMs {
		return fmt.Errorf("resolver.candidate_delay_min_ms must be >= 0 and <= candidate_delay_max_ms")
	}
	if len(c.Target.Patterns) == 0 {
		return fmt.Errorf("target.patterns must not be empty")
	}
	if !slices.Contains([]string{"md5", "sha256"}, c.Hash.Algorithm) {
		return fmt.Errorf("hash.algorithm must be md5 or sha256")
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRecords(); err != nil {
		return err
	}
	switch c.PubSub.Backend {
	case "memory":
	case "pubsub":
		if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
			return fmt.Errorf("pubsub.project_id is required when pubsub.topic is set")
		}
	default:
		return fmt.Errorf("pubsub.backend must be pubsub or memory")
	}
	return nil
}

func (c Config) validateStorage() error {
	switch c.Storage.Backend {
	case "memory":
	case "supabase":
		if err := c.requireSupabase("storage"); err != nil {
			return err
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for supabase")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for gcs")
		}
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for local")
		}
	default:
		return fmt.Errorf("storage.backend must be one of supabase, gcs, local, memory")
	}
	return nil
}

func (c Config) validateRecords() error {
	switch c.Records.Backend {
	case "memory":
	case "supabase":
		if err := c.requireSupabase("records"); err != nil {
			return err
		}
	case "postgres":
		if c.Records.DSN == "" {
			return fmt.Errorf("records.dsn is required for postgres")
		}
	case "mongo":
		if c.Records.MongoURI == "" || c.Records.MongoDatabase == "" {
			return fmt.Errorf("records.mongo_uri and records.mongo_database are required for mongo")
		}
	case "local":
		if c.Records.BaseDir == "" {
			return fmt.Errorf("records.base_dir is required for local")
		}
	default:
		return fmt.Errorf("records.backend must be one of supabase, postgres, mongo, local, memory")
	}
	if c.Records.Table == "" {
		return fmt.Errorf("records.table is required")
	}
	return nil
}

func (c Config) requireSupabase(section string) error {
	if c.Supabase.URL == "" || c.Supabase.Key == "" {
		return fmt.Errorf("%s.backend=supabase requires supabase.url and supabase.key", section)
	}
	return nil
}

// NavigationTimeout converts browser.nav_timeout_seconds to a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// CandidateDelay returns the bounds of the pause between candidate links.
func (c Config) CandidateDelay() (time.Duration, time.Duration) {
	return time.Duration(c.Resolver.CandidateDelayMinMs) * time.Millisecond,
		time.Duration(c.Resolver.CandidateDelayMaxMs) * time.Millisecond
}
