// Package config loads process configuration once at startup from an
// optional YAML file, DSIS_* environment variables and a secrets directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/dsis-recall-client/pkg/auth"
	"github.com/Sternrassler/dsis-recall-client/pkg/cache"
	"github.com/Sternrassler/dsis-recall-client/pkg/client"
	"github.com/Sternrassler/dsis-recall-client/pkg/logging"
	"github.com/spf13/viper"
)

const (
	envPrefix    = "DSIS"
	envVarPrefix = "env://" // value placeholder resolved from the environment

	// DefaultSecretsDir holds one file per credential, named after its key.
	DefaultSecretsDir = "secrets"
)

// ErrMissingCredentials is returned when user_id or password is found
// neither in the environment nor in the secrets directory.
var ErrMissingCredentials = errors.New("missing credentials")

// Config is the process configuration.
type Config struct {
	// Native selects the Recall native model instead of the common model
	Native bool `mapstructure:"native"`
	// BaseURL overrides the model's service root
	BaseURL  string `mapstructure:"base_url"`
	TokenURL string `mapstructure:"token_url"`

	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`

	// RedisAddr enables the response cache when set
	RedisAddr string        `mapstructure:"redis_addr"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	// MetricsAddr enables the /metrics and /health listener when set
	MetricsAddr string `mapstructure:"metrics_addr"`

	// S3Bucket enables upload of finished exports when set
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	S3Prefix string `mapstructure:"s3_prefix"`

	SecretsDir string `mapstructure:"secrets_dir"`

	Credentials auth.Credentials `mapstructure:"-"`
}

type loadOptions struct {
	configFile string
	secretsDir string
}

// Option customizes Load.
type Option func(*loadOptions)

// WithConfigFile reads a YAML file before applying the environment.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// WithSecretsDir overrides the secrets directory.
func WithSecretsDir(dir string) Option {
	return func(o *loadOptions) {
		o.secretsDir = dir
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("native", true)
	v.SetDefault("base_url", "")
	v.SetDefault("token_url", auth.DefaultTokenURL)
	v.SetDefault("insecure_skip_verify", true)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl", cache.DefaultTTL)
	v.SetDefault("log_level", string(logging.LevelInfo))
	v.SetDefault("log_pretty", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "eu-north-1")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("secrets_dir", DefaultSecretsDir)
	v.SetDefault("user_id", "")
	v.SetDefault("password", "")
}

// Load builds the configuration. Precedence, highest first: DSIS_*
// environment variables, the config file, defaults. Credentials come from
// DSIS_USER_ID/DSIS_PASSWORD or the files user_id/password in the secrets
// directory.
func Load(opts ...Option) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if o.secretsDir != "" {
		v.Set("secrets_dir", o.secretsDir)
	}

	for _, key := range v.AllKeys() {
		resolveEnvPlaceholder(v, key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	creds, err := loadCredentials(v, cfg.SecretsDir)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveEnvPlaceholder replaces a value of the form "env://NAME" with the
// content of environment variable NAME.
func resolveEnvPlaceholder(v *viper.Viper, key string) {
	str, ok := v.Get(key).(string)
	if !ok || !strings.HasPrefix(str, envVarPrefix) {
		return
	}
	v.Set(key, os.Getenv(strings.TrimPrefix(str, envVarPrefix)))
}

func loadCredentials(v *viper.Viper, secretsDir string) (auth.Credentials, error) {
	username, err := secretValue(v, "user_id", secretsDir)
	if err != nil {
		return auth.Credentials{}, err
	}
	password, err := secretValue(v, "password", secretsDir)
	if err != nil {
		return auth.Credentials{}, err
	}
	return auth.Credentials{Username: username, Password: password}, nil
}

// secretValue prefers the configured value and falls back to the file named
// key in secretsDir.
func secretValue(v *viper.Viper, key, secretsDir string) (string, error) {
	if s := v.GetString(key); s != "" {
		return s, nil
	}
	if secretsDir == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingCredentials, key)
	}

	data, err := os.ReadFile(filepath.Join(secretsDir, key))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s (set %s_%s or create %s)",
			ErrMissingCredentials, key, envPrefix, strings.ToUpper(key), filepath.Join(secretsDir, key))
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingCredentials, key)
	}
	return s, nil
}

func (c *Config) validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

// Model returns the data model selected by Native, with BaseURL applied.
func (c *Config) Model() client.Model {
	m := client.ModelFor(c.Native)
	if c.BaseURL != "" {
		m = m.WithBaseURL(c.BaseURL)
	}
	return m
}

// Auth returns the token provider configuration.
func (c *Config) Auth() auth.Config {
	a := auth.DefaultConfig(c.Credentials)
	if c.TokenURL != "" {
		a.TokenURL = c.TokenURL
	}
	a.InsecureSkipVerify = c.InsecureSkipVerify
	return a
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.LogLevel)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.LogPretty
	return cfg
}
