package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"wallet-activity-alerts/internal/logging"
	"wallet-activity-alerts/internal/ratelimit"
)

// Endpoint keys shared between config defaults and the monitor.
const (
	EndpointFeedTimeline = "feed_timeline"
	EndpointTokenLookup  = "dex_tokens"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Market   MarketConfig   `mapstructure:"market"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// PollerConfig governs social feed polling cadence.
type PollerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignCycles  bool          `mapstructure:"align_cycles"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// EndpointLimit is the quota policy for one endpoint key.
type EndpointLimit struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Batch    bool          `mapstructure:"batch"`
}

// BatchLimit paces batch-class endpoints globally.
type BatchLimit struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// LimitsConfig maps endpoint keys to quota policies.
type LimitsConfig struct {
	SafetyMargin float64                  `mapstructure:"safety_margin"`
	Endpoints    map[string]EndpointLimit `mapstructure:"endpoints"`
	Batch        BatchLimit               `mapstructure:"batch"`
}

// FeedConfig covers the social feed provider.
type FeedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	BearerToken    string        `mapstructure:"bearer_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	PageLimit      int           `mapstructure:"page_limit"`
}

// MarketConfig covers the DEX-indexing market data provider.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// WebhookConfig covers the transaction webhook receiver.
type WebhookConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// DiscordConfig 描述 Discord 频道告警参数。
type DiscordConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Channels map[string]string `mapstructure:"channels"`
}

// SMSConfig 描述短信网关参数。
type SMSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
	APIBase    string `mapstructure:"api_base"`
}

// AlertingConfig defines alert routing destinations.
type AlertingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Discord DiscordConfig `mapstructure:"discord"`
	SMS     SMSConfig     `mapstructure:"sms"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WALLETWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "walletwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("poller.interval", "2m")
	v.SetDefault("poller.align_cycles", true)
	v.SetDefault("poller.startup_delay", "0s")

	v.SetDefault("limits.safety_margin", 0.9)
	v.SetDefault("limits.endpoints."+EndpointFeedTimeline, map[string]any{
		"requests": 180,
		"window":   "15m",
		"batch":    true,
	})
	v.SetDefault("limits.endpoints."+EndpointTokenLookup, map[string]any{
		"requests": 300,
		"window":   "1m",
	})
	v.SetDefault("limits.batch.min_interval", "5s")
	v.SetDefault("limits.batch.max_retries", 3)
	v.SetDefault("limits.batch.retry_delay", "10s")

	v.SetDefault("feed.request_timeout", "10s")
	v.SetDefault("feed.user_agent", "walletwatch/1.0")
	v.SetDefault("feed.page_limit", 20)

	v.SetDefault("market.base_url", "https://api.dexscreener.com")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "walletwatch/1.0")

	v.SetDefault("webhook.listen_addr", ":8085")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.discord.enabled", false)
	v.SetDefault("alerting.discord.timeout", "10s")
	v.SetDefault("alerting.sms.enabled", false)
	v.SetDefault("alerting.sms.api_base", "https://api.twilio.com/2010-04-01")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be greater than zero")
	}
	if c.Limits.SafetyMargin <= 0 || c.Limits.SafetyMargin > 1 {
		return fmt.Errorf("limits.safety_margin must be in (0,1]")
	}
	for key, endpoint := range c.Limits.Endpoints {
		if endpoint.Requests <= 0 {
			return fmt.Errorf("limits.endpoints.%s.requests must be greater than zero", key)
		}
		if endpoint.Window <= 0 {
			return fmt.Errorf("limits.endpoints.%s.window must be greater than zero", key)
		}
	}
	if c.Alerting.SMS.Enabled {
		if c.Alerting.SMS.AccountSID == "" || c.Alerting.SMS.AuthToken == "" {
			return fmt.Errorf("alerting.sms 凭据必须配置")
		}
		if c.Alerting.SMS.FromNumber == "" {
			return fmt.Errorf("alerting.sms.from_number 必须配置")
		}
	}
	return nil
}

// LimiterOptions converts the limits section into limiter options.
func (c *Config) LimiterOptions() ratelimit.Options {
	endpoints := make(map[string]ratelimit.EndpointConfig, len(c.Limits.Endpoints))
	for key, endpoint := range c.Limits.Endpoints {
		endpoints[key] = ratelimit.EndpointConfig{
			Requests: endpoint.Requests,
			Window:   endpoint.Window,
			Batch:    endpoint.Batch,
		}
	}
	return ratelimit.Options{
		Endpoints:    endpoints,
		SafetyMargin: c.Limits.SafetyMargin,
		Batch: ratelimit.BatchConfig{
			MinInterval: c.Limits.Batch.MinInterval,
			MaxRetries:  c.Limits.Batch.MaxRetries,
			RetryDelay:  c.Limits.Batch.RetryDelay,
		},
	}
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
