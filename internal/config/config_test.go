package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
  level: debug
feed:
  channel: dealsil
  limit: 50
browser:
  engines: [edge]
  headless: true
  nav_timeout_seconds: 60
proxy:
  server: http://proxy.example.com:8080
  username: user
  password: pass
resolver:
  candidate_delay_min_ms: 100
  candidate_delay_max_ms: 300
target:
  patterns: [amazon]
storage:
  backend: local
  base_dir: /tmp/media
records:
  backend: postgres
  dsn: postgres://localhost/deals
hash:
  algorithm: sha256
pubsub:
  project_id: proj
  topic: records
ops:
  addr: ":9102"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Feed.Channel != "dealsil" || cfg.Feed.Limit != 50 {
		t.Fatalf("expected feed overrides, got %+v", cfg.Feed)
	}
	if len(cfg.Browser.Engines) != 1 || cfg.Browser.Engines[0] != "edge" || !cfg.Browser.Headless {
		t.Fatalf("expected browser overrides, got %+v", cfg.Browser)
	}
	if cfg.Proxy.Username != "user" || cfg.Proxy.Password != "pass" {
		t.Fatalf("expected proxy credentials, got %+v", cfg.Proxy)
	}
	if got := cfg.NavigationTimeout(); got != 60*time.Second {
		t.Fatalf("expected nav timeout 60s, got %v", got)
	}
	minDelay, maxDelay := cfg.CandidateDelay()
	if minDelay != 100*time.Millisecond || maxDelay != 300*time.Millisecond {
		t.Fatalf("unexpected candidate delay %v..%v", minDelay, maxDelay)
	}
	if cfg.Records.Table != "telegram_messages" || cfg.Storage.Prefix != "images" {
		t.Fatalf("expected defaults to survive, got %+v %+v", cfg.Records, cfg.Storage)
	}
	if cfg.Export.Path != "channel_messages_dealsil.json" {
		t.Fatalf("unexpected export path %q", cfg.Export.Path)
	}
	if cfg.Hash.Algorithm != "sha256" || cfg.Ops.Addr != ":9102" {
		t.Fatalf("unexpected hash/ops config %+v %+v", cfg.Hash, cfg.Ops)
	}
}

func TestLoadDotenvAndLegacyAliases(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	envBody := "PROXY_SERVER=http://legacy-proxy:3128\nSUPABASE_URL=https://proj.supabase.co\nSUPABASE_SERVICE_KEY=service\n"
	if err := os.WriteFile(envFile, []byte(envBody), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	for _, key := range []string{"PROXY_SERVER", "SUPABASE_URL", "SUPABASE_SERVICE_KEY"} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
	t.Setenv("COLLECTOR_FEED_LIMIT", "7")

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Proxy.Server != "http://legacy-proxy:3128" {
		t.Fatalf("expected legacy proxy alias, got %q", cfg.Proxy.Server)
	}
	if cfg.Supabase.URL != "https://proj.supabase.co" || cfg.Supabase.Key != "service" {
		t.Fatalf("expected supabase aliases, got %+v", cfg.Supabase)
	}
	if cfg.Feed.Limit != 7 {
		t.Fatalf("expected prefixed env override, got %d", cfg.Feed.Limit)
	}
	if cfg.Storage.Backend != "supabase" || cfg.Storage.Bucket != "image-storage" || cfg.Hash.Algorithm != "md5" {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Storage, cfg.Hash)
	}
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Setenv("PROXY_SERVER", "http://legacy:1")
	t.Setenv("COLLECTOR_PROXY_SERVER", "http://prefixed:2")
	t.Setenv("COLLECTOR_STORAGE_BACKEND", "memory")
	t.Setenv("COLLECTOR_RECORDS_BACKEND", "memory")

	cfg, err := Load("", filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Proxy.Server != "http://prefixed:2" {
		t.Fatalf("expected prefixed variable to win, got %q", cfg.Proxy.Server)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func validConfig() Config {
	return Config{
		Feed:     FeedConfig{Channel: "deals", Limit: 100},
		Browser:  BrowserConfig{Engines: []string{"chrome", "edge"}, NavTimeoutSec: 120},
		Proxy:    ProxyConfig{Server: "http://proxy:8080"},
		Humanize: HumanizeConfig{PauseScale: 1},
		Resolver: ResolverConfig{CandidateDelayMinMs: 2000, CandidateDelayMaxMs: 5000},
		Target:   TargetConfig{Patterns: []string{"amazon"}},
		Storage:  StorageConfig{Backend: "memory"},
		Records:  RecordsConfig{Backend: "memory", Table: "telegram_messages"},
		Hash:     HashConfig{Algorithm: "md5"},
		PubSub:   PubSubConfig{Backend: "pubsub"},
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing channel", func(c *Config) { c.Feed.Channel = " " }, "feed.channel"},
		{"zero limit", func(c *Config) { c.Feed.Limit = 0 }, "feed.limit"},
		{"missing proxy", func(c *Config) { c.Proxy.Server = "" }, "proxy.server"},
		{"unknown engine", func(c *Config) { c.Browser.Engines = []string{"firefox"} }, "browser.engines"},
		{"no engines", func(c *Config) { c.Browser.Engines = nil }, "browser.engines"},
		{"nav timeout", func(c *Config) { c.Browser.NavTimeoutSec = 0 }, "browser.nav_timeout_seconds"},
		{"negative scale", func(c *Config) { c.Humanize.PauseScale = -1 }, "humanize.pause_scale"},
		{"inverted delay", func(c *Config) { c.Resolver.CandidateDelayMaxMs = 10 }, "resolver.candidate_delay"},
		{"no patterns", func(c *Config) { c.Target.Patterns = nil }, "target.patterns"},
		{"bad hash", func(c *Config) { c.Hash.Algorithm = "crc32" }, "hash.algorithm"},
		{"gcs bucket", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.bucket"},
		{"local dir", func(c *Config) { c.Storage.Backend = "local" }, "storage.base_dir"},
		{"supabase creds", func(c *Config) { c.Storage.Backend = "supabase"; c.Storage.Bucket = "b" }, "supabase.url"},
		{"bad storage", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"postgres dsn", func(c *Config) { c.Records.Backend = "postgres" }, "records.dsn"},
		{"mongo uri", func(c *Config) { c.Records.Backend = "mongo" }, "records.mongo_uri"},
		{"bad records", func(c *Config) { c.Records.Backend = "sqlite" }, "records.backend"},
		{"empty table", func(c *Config) { c.Records.Table = "" }, "records.table"},
		{"pubsub project", func(c *Config) { c.PubSub.Topic = "records" }, "pubsub.project_id"},
		{"bad pubsub", func(c *Config) { c.PubSub.Backend = "kafka" }, "pubsub.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
