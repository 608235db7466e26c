// Package config loads client settings from a YAML file, QUANTUMDMN_*
// environment variables, and defaults.
//
//	base_url: https://api.quantumdmn.com
//	project_id: 0b7c1c5e-8f5a-4d0e-9d55-2f7f0d3c9a11
//	auth:
//	  zitadel:
//	    key_file: /etc/quantumdmn/key.json
//	    project_id: "283749823749"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultBaseURL = "https://api.quantumdmn.com"
	DefaultIssuer  = "https://auth.quantumdmn.com"
	DefaultTimeout = 10 * time.Second

	// EnvPrefix namespaces environment overrides: auth.zitadel.key_file is
	// read from QUANTUMDMN_AUTH_ZITADEL_KEY_FILE.
	EnvPrefix = "QUANTUMDMN"
)

// ErrNoCredentials is returned by Validate when neither a static token nor a
// key file is configured.
var ErrNoCredentials = errors.New("config: either token or auth.zitadel.key_file must be set")

// Zitadel holds the service-account settings used to mint access tokens.
type Zitadel struct {
	KeyFile   string `mapstructure:"key_file"`
	Issuer    string `mapstructure:"issuer"`
	ProjectID string `mapstructure:"project_id"`
}

type Auth struct {
	Zitadel Zitadel `mapstructure:"zitadel"`
}

// Config is the resolved client configuration.
type Config struct {
	BaseURL string `mapstructure:"base_url"`

	// Token is a pre-issued bearer token. Ignored when a key file is set.
	Token string `mapstructure:"token"`

	// ProjectID is the QuantumDMN project (a UUID) evaluations run against.
	ProjectID string `mapstructure:"project_id"`

	Timeout time.Duration `mapstructure:"timeout"`

	// RateLimit caps outgoing API requests per second. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit"`

	Auth Auth `mapstructure:"auth"`
}

// SetDefaults registers every key with its default so that environment
// overrides are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("token", "")
	v.SetDefault("project_id", "")
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("auth.zitadel.key_file", "")
	v.SetDefault("auth.zitadel.issuer", DefaultIssuer)
	v.SetDefault("auth.zitadel.project_id", "")
}

// NewViper returns a viper instance wired for config file discovery and
// QUANTUMDMN_* environment overrides. An empty path searches ./dmn.yaml
// and $HOME/.quantumdmn/dmn.yaml.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dmn")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".quantumdmn"))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration from path (or the default search paths when
// empty). A missing file in the search paths is not an error; a missing
// explicit path is.
func Load(path string) (*Config, error) {
	v := NewViper(path)
	if err := ReadInConfig(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ReadInConfig reads v's config file, tolerating its absence from the
// search paths.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// FromViper decodes the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &cfg, nil
}

// UsesKeyFile reports whether tokens are minted from a service-account key.
func (c *Config) UsesKeyFile() bool {
	return strings.TrimSpace(c.Auth.Zitadel.KeyFile) != ""
}

// Validate checks that the configuration can authenticate.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url must be set")
	}
	if !c.UsesKeyFile() && strings.TrimSpace(c.Token) == "" {
		return ErrNoCredentials
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative, got %v", c.RateLimit)
	}
	return nil
}
