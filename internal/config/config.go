// Package config loads cakestress settings from defaults, an optional
// YAML file and CAKE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CAKE_STRESS_TRIALS or CAKE_KAFKA_BROKERS.
const EnvPrefix = "CAKE"

// Kafka client implementations.
const (
	ClientSarama  = "sarama"
	ClientKafkaGo = "kafka-go"
)

// Config is the complete cakestress configuration.
type Config struct {
	Stress  StressConfig  `mapstructure:"stress"`
	Store   StoreConfig   `mapstructure:"store"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StressConfig controls the concurrency trials.
type StressConfig struct {
	// Trials is the number of objects raced over in one run.
	Trials int `mapstructure:"trials"`
	// Workers is the number of goroutines racing over each object.
	Workers int `mapstructure:"workers"`
	// DeleteOdds: each locked iteration deletes with probability 1/DeleteOdds.
	DeleteOdds int `mapstructure:"delete_odds"`
	// Interval is the pause between runs in serve mode.
	Interval time.Duration `mapstructure:"interval"`
}

// StoreConfig locates the report outbox.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// KafkaConfig controls report publishing.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	// Client is "sarama" or "kafka-go".
	Client        string        `mapstructure:"client"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	MaxRetries    uint32        `mapstructure:"max_retries"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Stress: StressConfig{
			Trials:     100,
			Workers:    10,
			DeleteOdds: 1000,
			Interval:   5 * time.Second,
		},
		Store: StoreConfig{
			Dir: "./cake_reports",
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			Topic:         "cake.stress.reports",
			Client:        ClientSarama,
			FlushInterval: 250 * time.Millisecond,
			MaxRetries:    5,
		},
		GRPC: GRPCConfig{
			Addr: ":50051",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// SetDefaults registers Default() on v so that every key is known to
// viper, which environment lookups need during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("stress.trials", d.Stress.Trials)
	v.SetDefault("stress.workers", d.Stress.Workers)
	v.SetDefault("stress.delete_odds", d.Stress.DeleteOdds)
	v.SetDefault("stress.interval", d.Stress.Interval)

	v.SetDefault("store.dir", d.Store.Dir)

	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.client", d.Kafka.Client)
	v.SetDefault("kafka.flush_interval", d.Kafka.FlushInterval)
	v.SetDefault("kafka.max_retries", d.Kafka.MaxRetries)

	v.SetDefault("grpc.addr", d.GRPC.Addr)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// New returns a viper instance with defaults and environment binding in
// place. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Stress.Trials <= 0 {
		errs = append(errs, fmt.Errorf("stress.trials must be positive, got %d", c.Stress.Trials))
	}
	if c.Stress.Workers <= 0 {
		errs = append(errs, fmt.Errorf("stress.workers must be positive, got %d", c.Stress.Workers))
	}
	if c.Stress.DeleteOdds <= 0 {
		errs = append(errs, fmt.Errorf("stress.delete_odds must be positive, got %d", c.Stress.DeleteOdds))
	}
	if c.Stress.Interval <= 0 {
		errs = append(errs, fmt.Errorf("stress.interval must be positive, got %s", c.Stress.Interval))
	}
	if c.Store.Dir == "" {
		errs = append(errs, errors.New("store.dir must be set"))
	}
	switch c.Kafka.Client {
	case ClientSarama, ClientKafkaGo:
	default:
		errs = append(errs, fmt.Errorf("kafka.client must be %q or %q, got %q", ClientSarama, ClientKafkaGo, c.Kafka.Client))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers must be set when kafka is enabled"))
	}
	return errors.Join(errs...)
}
