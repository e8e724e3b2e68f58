package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	authcard "github.com/goliatone/go-authcard"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, AUTHCARD_BACKEND_URL
// sets backend.url.
const EnvPrefix = "AUTHCARD"

const (
	ProviderGoTrue = "gotrue"
	ProviderLocal  = "local"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Redirect RedirectConfig `mapstructure:"redirect"`
	Timings  TimingsConfig  `mapstructure:"timings"`
	Pages    PagesConfig    `mapstructure:"pages"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Brand    BrandConfig    `mapstructure:"brand"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address       string `mapstructure:"address"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
	Debug         bool   `mapstructure:"debug"`
	// CSRFKey enables form token checks when set. At least 32 bytes.
	CSRFKey string `mapstructure:"csrf_key"`
}

type BackendConfig struct {
	Provider     string      `mapstructure:"provider"`
	URL          string      `mapstructure:"url"`
	AnonKey      string      `mapstructure:"anon_key"`
	ServiceKey   string      `mapstructure:"service_key"`
	ProfileTable string      `mapstructure:"profile_table"`
	JWKSURL      string      `mapstructure:"jwks_url"`
	Local        LocalConfig `mapstructure:"local"`
}

type LocalConfig struct {
	DSN        string        `mapstructure:"dsn"`
	SigningKey string        `mapstructure:"signing_key"`
	HashIDs    bool          `mapstructure:"hashids"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type RedirectConfig struct {
	URL string `mapstructure:"url"`
}

type TimingsConfig struct {
	HandoffDelay  time.Duration `mapstructure:"handoff_delay"`
	ExitDuration  time.Duration `mapstructure:"exit_duration"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
}

type PagesConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

type BrandConfig struct {
	Name    string `mapstructure:"name"`
	Tagline string `mapstructure:"tagline"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func defaults() map[string]any {
	timings := authcard.DefaultTimings()
	return map[string]any{
		"server.address":            ":8080",
		"server.secure_cookies":     true,
		"server.debug":              false,
		"server.csrf_key":           "",
		"backend.provider":          ProviderGoTrue,
		"backend.url":               "",
		"backend.anon_key":          "",
		"backend.service_key":       "",
		"backend.profile_table":     "users",
		"backend.jwks_url":          "",
		"backend.local.dsn":         "file:authcard.db?cache=shared",
		"backend.local.signing_key": "",
		"backend.local.hashids":     false,
		"backend.local.token_ttl":   time.Hour,
		"redirect.url":              "/app",
		"timings.handoff_delay":     timings.HandoffDelay,
		"timings.exit_duration":     timings.ExitDuration,
		"timings.redirect_delay":    timings.RedirectDelay,
		"pages.ttl":                 authcard.DefaultPageTTL,
		"pages.sweep_interval":      time.Minute,
		"store.driver":              StoreMemory,
		"store.redis.addr":          "localhost:6379",
		"store.redis.password":      "",
		"store.redis.db":            0,
		"store.redis.prefix":        "authcard:page:",
		"log.level":                 "info",
		"log.format":                "json",
		"log.development":           false,
		"brand.name":                "NovaSphere",
		"brand.tagline":             "Premium cloud workspace platform",
		"metrics.enabled":           true,
		"metrics.path":              "/metrics",
	}
}

// AddFlags registers the command line overrides. Flag names are the
// configuration keys.
func AddFlags(fs *pflag.FlagSet) {
	def := defaults()
	fs.String("server.address", def["server.address"].(string), "HTTP listen address")
	fs.Bool("server.secure_cookies", def["server.secure_cookies"].(bool), "Mark cookies Secure")
	fs.Bool("server.debug", def["server.debug"].(bool), "Enable debug dumps and stack traces")
	fs.String("backend.provider", def["backend.provider"].(string), "Backend provider: gotrue or local")
	fs.String("backend.url", def["backend.url"].(string), "Hosted backend base URL")
	fs.String("backend.anon_key", def["backend.anon_key"].(string), "Hosted backend public key")
	fs.String("backend.jwks_url", def["backend.jwks_url"].(string), "JWKS URL used to verify access tokens")
	fs.String("backend.local.dsn", def["backend.local.dsn"].(string), "SQLite DSN of the local backend")
	fs.String("redirect.url", def["redirect.url"].(string), "Destination after a completed sign in")
	fs.Duration("pages.ttl", def["pages.ttl"].(time.Duration), "Idle lifetime of a page")
	fs.String("store.driver", def["store.driver"].(string), "Snapshot store: memory or redis")
	fs.String("store.redis.addr", def["store.redis.addr"].(string), "Redis address of the snapshot store")
	fs.String("log.level", def["log.level"].(string), "Log level: debug, info, warn, error")
	fs.String("log.format", def["log.format"].(string), "Log format: json or console")
	fs.Bool("log.development", def["log.development"].(bool), "Use the development logger")
}

// Load reads configuration from, lowest precedence first, defaults, the
// config file, AUTHCARD_ environment variables and changed flags. An
// empty file searches ./authcard.yaml, ./configs and /etc/authcard.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("authcard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/authcard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every offending key at once.
func (c *Config) Validate() error {
	errs := validation.Errors{
		"server.address":   validation.Validate(c.Server.Address, validation.Required),
		"backend.provider": validation.Validate(c.Backend.Provider, validation.Required, validation.In(ProviderGoTrue, ProviderLocal)),
		"redirect.url":     validation.Validate(c.Redirect.URL, validation.Required, validation.By(redirectTarget)),
		"store.driver":     validation.Validate(c.Store.Driver, validation.Required, validation.In(StoreMemory, StoreRedis)),
		"log.level":        validation.Validate(c.Log.Level, validation.In("debug", "info", "warn", "error")),
		"log.format":       validation.Validate(c.Log.Format, validation.In("json", "console")),
		"pages.ttl":        validation.Validate(int64(c.Pages.TTL), validation.Min(0)),

		"timings.handoff_delay":  validation.Validate(int64(c.Timings.HandoffDelay), validation.Min(0)),
		"timings.exit_duration":  validation.Validate(int64(c.Timings.ExitDuration), validation.Min(0)),
		"timings.redirect_delay": validation.Validate(int64(c.Timings.RedirectDelay), validation.Min(0)),
	}

	switch c.Backend.Provider {
	case ProviderGoTrue:
		errs["backend.url"] = validation.Validate(c.Backend.URL, validation.Required, validation.By(absoluteURL))
		errs["backend.anon_key"] = validation.Validate(c.Backend.AnonKey, validation.Required)
		if c.Backend.JWKSURL != "" {
			errs["backend.jwks_url"] = validation.Validate(c.Backend.JWKSURL, validation.By(absoluteURL))
		}
	case ProviderLocal:
		errs["backend.local.dsn"] = validation.Validate(c.Backend.Local.DSN, validation.Required)
		errs["backend.local.signing_key"] = validation.Validate(c.Backend.Local.SigningKey, validation.Required, validation.Length(16, 0))
	}

	if c.Store.Driver == StoreRedis {
		errs["store.redis.addr"] = validation.Validate(c.Store.Redis.Addr, validation.Required)
	}

	if c.Server.CSRFKey != "" {
		errs["server.csrf_key"] = validation.Validate(c.Server.CSRFKey, validation.Length(32, 0))
	}

	if c.Metrics.Enabled {
		errs["metrics.path"] = validation.Validate(c.Metrics.Path, validation.Required, validation.By(rootedPath))
	}

	return errs.Filter()
}

// CardTimings converts the timing section.
func (c *Config) CardTimings() authcard.Timings {
	return authcard.Timings{
		HandoffDelay:  c.Timings.HandoffDelay,
		ExitDuration:  c.Timings.ExitDuration,
		RedirectDelay: c.Timings.RedirectDelay,
	}
}

func (c *Config) LoggerOptions() authcard.LoggerOptions {
	return authcard.LoggerOptions{
		Level:       c.Log.Level,
		Format:      c.Log.Format,
		Development: c.Log.Development,
	}
}

func (c *Config) CardBrand() authcard.Brand {
	return authcard.Brand{Name: c.Brand.Name, Tagline: c.Brand.Tagline}
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

func redirectTarget(value any) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return nil
	}
	return absoluteURL(value)
}

func rootedPath(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") {
		return errors.New("must start with /")
	}
	return nil
}
