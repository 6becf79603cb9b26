// Package config decodes the relay's YAML configuration through viper and
// serves it as the engine's read-model store.
package config

import (
	"fmt"
	"strings"
	"time"

	"db-relay/internal/model"
	"db-relay/internal/resultlog"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "DBRELAY"
	FileName  = "db-relay"
)

type Config struct {
	Connections  []model.Connection  `mapstructure:"connections"`
	Integrations []IntegrationConfig `mapstructure:"integrations"`
	Settings     Settings            `mapstructure:"settings"`
	Log          LogConfig           `mapstructure:"log"`
	Metrics      MetricsConfig       `mapstructure:"metrics"`
	ResultLog    ResultLogConfig     `mapstructure:"resultlog"`
}

// IntegrationConfig is an integration with its mappings declared inline.
type IntegrationConfig struct {
	model.Integration `mapstructure:",squash"`
	Mappings          []model.Mapping `mapstructure:"mappings"`
}

type Settings struct {
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	PreviewRows  int           `mapstructure:"preview_rows"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Pushgateway PushgatewayConfig `mapstructure:"pushgateway"`
}

// PushgatewayConfig enables a push after each command when URL is set.
type PushgatewayConfig struct {
	URL string `mapstructure:"url"`
	Job string `mapstructure:"job"`
}

type ResultLogConfig struct {
	Redis resultlog.RedisConfig `mapstructure:"redis"`
}

// SetDefaults registers defaults and environment lookups on v.
// DBRELAY_SETTINGS_READ_TIMEOUT overrides settings.read_timeout, and so on.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("settings.read_timeout", 5*time.Minute)
	v.SetDefault("settings.write_timeout", 5*time.Minute)
	v.SetDefault("settings.probe_timeout", 30*time.Second)
	v.SetDefault("settings.preview_rows", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.pushgateway.url", "")
	v.SetDefault("metrics.pushgateway.job", "db-relay")
	v.SetDefault("resultlog.redis.address", "")
	v.SetDefault("resultlog.redis.ttl", 24*time.Hour)
	v.SetDefault("resultlog.redis.prefix", "relay")
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks identifiers and queries. Database types and connection
// references are checked when an integration runs.
func (c *Config) Validate() error {
	conns := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		if conn.ID == "" {
			return fmt.Errorf("connections[%d]: id is required", i)
		}
		if conns[conn.ID] {
			return fmt.Errorf("connections[%d]: duplicate id %q", i, conn.ID)
		}
		conns[conn.ID] = true
	}

	ids := make(map[string]bool, len(c.Integrations))
	for i, it := range c.Integrations {
		if it.ID == "" {
			return fmt.Errorf("integrations[%d]: id is required", i)
		}
		if ids[it.ID] {
			return fmt.Errorf("integrations[%d]: duplicate id %q", i, it.ID)
		}
		ids[it.ID] = true
		if strings.TrimSpace(it.SourceQuery) == "" {
			return fmt.Errorf("integration %q: source_query is required", it.ID)
		}
		if strings.TrimSpace(it.TargetQuery) == "" {
			return fmt.Errorf("integration %q: target_query is required", it.ID)
		}
	}

	if c.Settings.PreviewRows < 0 {
		return fmt.Errorf("settings.preview_rows must not be negative")
	}
	return nil
}

// Connection returns the connection with the given id or name.
func (c *Config) Connection(ref string) (model.Connection, bool) {
	for _, conn := range c.Connections {
		if conn.ID == ref {
			return conn, true
		}
	}
	for _, conn := range c.Connections {
		if conn.Name != "" && strings.EqualFold(conn.Name, ref) {
			return conn, true
		}
	}
	return model.Connection{}, false
}
