// Package config loads the service configuration from a YAML file with
// environment variable overrides. Secrets (the cache API key) are taken from
// the environment only and never live in the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" decode.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}

	*d = Duration(parsed)

	return nil
}

// Config is the full service configuration.
type Config struct {
	Region     string `yaml:"region"`
	TableName  string `yaml:"table_name"`
	QueueName  string `yaml:"queue_name"`
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	// SkipSchemaValidation disables the DescribeTable check at startup.
	// Useful against local DynamoDB instances without the secondary indexes.
	SkipSchemaValidation bool `yaml:"skip_schema_validation"`

	Credentials CredentialsConfig `yaml:"credentials"`
	Cache       CacheConfig       `yaml:"cache"`
}

// CredentialsConfig configures the credential vendor. IdentityEndpoint is
// optional; when set it overrides the region-resolved Cognito endpoint
// (useful against local stacks).
type CredentialsConfig struct {
	BrokerRoleARN    string   `yaml:"broker_role_arn"`
	IdentityEndpoint string   `yaml:"identity_endpoint"`
	TTL              Duration `yaml:"ttl"`
}

// CacheConfig configures the external credential cache. APIKey is populated
// from the MOMENTO_API_KEY environment variable.
type CacheConfig struct {
	Endpoint string `yaml:"endpoint"`
	Name     string `yaml:"name"`
	APIKey   string `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		Region:     "us-east-1",
		ListenAddr: ":8080",
		LogLevel:   "info",
		Credentials: CredentialsConfig{
			TTL: Duration(time.Hour),
		},
	}
}

// Load reads the configuration from the given YAML file, then applies
// environment variable overrides. An empty path skips the file and loads
// from defaults and the environment alone.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Region, "AWS_REGION")
	setString(&c.TableName, "MAILTRACK_TABLE_NAME")
	setString(&c.QueueName, "MAILTRACK_QUEUE_NAME")
	setString(&c.ListenAddr, "MAILTRACK_LISTEN_ADDR")
	setString(&c.LogLevel, "MAILTRACK_LOG_LEVEL")
	setBool(&c.SkipSchemaValidation, "MAILTRACK_SKIP_SCHEMA_VALIDATION")

	setString(&c.Credentials.BrokerRoleARN, "MAILTRACK_BROKER_ROLE_ARN")
	setString(&c.Credentials.IdentityEndpoint, "MAILTRACK_IDENTITY_ENDPOINT")
	setDuration(&c.Credentials.TTL, "MAILTRACK_CREDENTIAL_TTL")

	setString(&c.Cache.Endpoint, "MAILTRACK_CACHE_ENDPOINT")
	setString(&c.Cache.Name, "MAILTRACK_CACHE_NAME")
	setString(&c.Cache.APIKey, "MOMENTO_API_KEY")
}

func (c *Config) validate() error {
	if c.TableName == "" {
		return errors.New("table_name is required")
	}

	if c.QueueName == "" {
		return errors.New("queue_name is required")
	}

	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}

	if c.Credentials.BrokerRoleARN == "" {
		return errors.New("credentials.broker_role_arn is required")
	}

	if c.Credentials.TTL <= 0 {
		return errors.New("credentials.ttl must be positive")
	}

	if c.Cache.Endpoint != "" && c.Cache.Name == "" {
		return errors.New("cache.name is required when cache.endpoint is set")
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = Duration(parsed)
		}
	}
}
