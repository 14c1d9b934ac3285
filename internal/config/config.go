package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"storefront.dev/internal/auth"
)

const envPrefix = "STOREFRONT"

// Config is shared by every binary; each reads the sections it needs.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		Port            int           `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
		Mode            string        `mapstructure:"mode"`
		TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	} `mapstructure:"server"`

	Service struct {
		Name    string `mapstructure:"name"`
		Version string `mapstructure:"version"`
	} `mapstructure:"service"`

	JWT struct {
		Secret string        `mapstructure:"secret"`
		Issuer string        `mapstructure:"issuer"`
		TTL    time.Duration `mapstructure:"ttl"`
		Cookie struct {
			Name string `mapstructure:"name"`
		} `mapstructure:"cookie"`
	} `mapstructure:"jwt"`

	Login struct {
		URL       string `mapstructure:"url"`
		RateBurst int    `mapstructure:"rate_burst"`
		RatePerS  int    `mapstructure:"rate_per_second"`
	} `mapstructure:"login"`

	Security struct {
		DefaultPolicy string   `mapstructure:"default_policy"`
		PublicPaths   []string `mapstructure:"public_paths"`
	} `mapstructure:"security"`

	Database struct {
		DSN             string        `mapstructure:"dsn"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	} `mapstructure:"database"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Catalog struct {
		ProductServiceURL string        `mapstructure:"product_service_url"`
		Timeout           time.Duration `mapstructure:"timeout"`
		RetryCount        int           `mapstructure:"retry_count"`
	} `mapstructure:"catalog"`

	Gateway struct {
		Routes []Route `mapstructure:"routes"`
	} `mapstructure:"gateway"`

	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`

	Observability struct {
		LogLevel           string  `mapstructure:"log_level"`
		LogFormat          string  `mapstructure:"log_format"`
		TraceEnabled       bool    `mapstructure:"trace_enabled"`
		TracingEndpointURL string  `mapstructure:"tracing_endpoint_url"`
		TraceSampleRatio   float64 `mapstructure:"trace_sample_ratio"`
		TraceInsecure      bool    `mapstructure:"trace_insecure"`
	} `mapstructure:"observability"`
}

// Route is one gateway forwarding rule.
type Route struct {
	ID              string            `mapstructure:"id"`
	Paths           []string          `mapstructure:"paths"`
	Methods         []string          `mapstructure:"methods"`
	Target          string            `mapstructure:"target"`
	Authorize       bool              `mapstructure:"authorize"`
	StripPrefix     int               `mapstructure:"strip_prefix"`
	RequestHeaders  map[string]string `mapstructure:"request_headers"`
	ResponseHeaders map[string]string `mapstructure:"response_headers"`
}

type loadOptions struct {
	file  string
	paths []string
}

// Option adjusts where configuration is read from.
type Option func(*loadOptions)

// WithFile reads exactly this file instead of searching.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.file = path }
}

// WithSearchPaths overrides the directories searched for config.yaml.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) { o.paths = paths }
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", int64(1<<20))
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("service.name", "user-service")
	v.SetDefault("service.version", "dev")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", auth.DefaultIssuer)
	v.SetDefault("jwt.ttl", auth.DefaultTokenTTL)
	v.SetDefault("jwt.cookie.name", auth.DefaultCookieName)

	v.SetDefault("login.url", "/user/login")
	v.SetDefault("login.rate_burst", 10)
	v.SetDefault("login.rate_per_second", 5)

	v.SetDefault("security.default_policy", string(auth.DefaultPermit))
	v.SetDefault("security.public_paths", []string{"/user/signup", "/healthz", "/readyz", "/metrics"})

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("catalog.product_service_url", "http://localhost:8082")
	v.SetDefault("catalog.timeout", 5*time.Second)
	v.SetDefault("catalog.retry_count", 2)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:8010"})

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.trace_enabled", false)
	v.SetDefault("observability.tracing_endpoint_url", "")
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.trace_insecure", true)
}

// Load reads config.yaml (plus the APP_ENV overlay) and STOREFRONT_* env vars.
// A missing config file is not an error; defaults and env still apply.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{paths: []string{"./config", "."}}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if o.file != "" {
		v.SetConfigFile(o.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range o.paths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if env := strings.TrimSpace(os.Getenv("APP_ENV")); env != "" && o.file == "" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			logrus.WithField("env", env).Debug("no environment-specific config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads and validates configuration or exits the process.
func MustLoad(opts ...Option) *Config {
	cfg, err := Load(opts...)
	if err == nil {
		err = cfg.ValidateAuth()
	}
	if err != nil {
		logrus.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	return cfg
}

// ValidateAuth checks the settings the security pipeline cannot run without.
func (c *Config) ValidateAuth() error {
	if len(strings.TrimSpace(c.JWT.Secret)) < 32 {
		return errors.New("jwt.secret must be set and at least 32 bytes")
	}
	if strings.TrimSpace(c.JWT.Cookie.Name) == "" {
		return errors.New("jwt.cookie.name must be set")
	}
	if !strings.HasPrefix(c.Login.URL, "/") {
		return fmt.Errorf("login.url must be an absolute path, got %q", c.Login.URL)
	}
	if _, err := auth.ParseDefaultPolicy(c.Security.DefaultPolicy); err != nil {
		return err
	}
	return nil
}

// CodecOptions translates JWT settings into codec options.
func (c *Config) CodecOptions() []auth.CodecOption {
	var opts []auth.CodecOption
	if c.JWT.Issuer != "" {
		opts = append(opts, auth.WithIssuer(c.JWT.Issuer))
	}
	if c.JWT.TTL > 0 {
		opts = append(opts, auth.WithTokenTTL(c.JWT.TTL))
	}
	return opts
}
