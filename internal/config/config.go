package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "LEDGER"

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AddressConfig holds the watch-only master key. Xpub wins over the hex pair.
type AddressConfig struct {
	Xpub            string `mapstructure:"xpub"`
	MasterPublicKey string `mapstructure:"master_public_key"`
	ChainCode       string `mapstructure:"chain_code"`
	Version         uint8  `mapstructure:"version"`
}

type TokenConfig struct {
	Default string `mapstructure:"default"`
}

type IndexerConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PageSize      int           `mapstructure:"page_size"`
	MaxPages      int           `mapstructure:"max_pages"`
	ExcludeWindow int           `mapstructure:"exclude_window"`
}

type SettlementConfig struct {
	Target  string        `mapstructure:"target"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WithdrawalConfig struct {
	ChangeAddress string `mapstructure:"change_address"`
	DustSatoshis  int64  `mapstructure:"dust_satoshis"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// SweepConfig drives the periodic reconcile of every known account. A zero
// interval disables it.
type SweepConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

type SnowflakeConfig struct {
	// NodeId below zero derives the node from HOSTNAME.
	NodeId int64 `mapstructure:"node_id"`
}

type Config struct {
	ServiceName string           `mapstructure:"service_name"`
	LogLevel    string           `mapstructure:"log_level"`
	GRPC        GRPCConfig       `mapstructure:"grpc"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	OTLP        OTLPConfig       `mapstructure:"otlp"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Address     AddressConfig    `mapstructure:"address"`
	Token       TokenConfig      `mapstructure:"token"`
	Indexer     IndexerConfig    `mapstructure:"indexer"`
	Settlement  SettlementConfig `mapstructure:"settlement"`
	Withdrawal  WithdrawalConfig `mapstructure:"withdrawal"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	Sweep       SweepConfig      `mapstructure:"sweep"`
	Snowflake   SnowflakeConfig  `mapstructure:"snowflake"`
}

// Load reads path (optional, falls back to LEDGER_CONFIG) and overlays
// LEDGER_* environment variables, e.g. LEDGER_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "token-ledger")
	v.SetDefault("log_level", "info")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("otlp.endpoint", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("address.xpub", "")
	v.SetDefault("address.master_public_key", "")
	v.SetDefault("address.chain_code", "")
	v.SetDefault("address.version", 0)
	v.SetDefault("token.default", "MPX")
	v.SetDefault("indexer.base_url", "http://localhost:4000")
	v.SetDefault("indexer.timeout", "10s")
	v.SetDefault("indexer.page_size", 10)
	v.SetDefault("indexer.max_pages", 1)
	v.SetDefault("indexer.exclude_window", 32)
	v.SetDefault("settlement.target", "localhost:50052")
	v.SetDefault("settlement.timeout", "30s")
	v.SetDefault("withdrawal.change_address", "")
	v.SetDefault("withdrawal.dust_satoshis", 1000)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ledger.events")
	v.SetDefault("kafka.publish_timeout", 2*time.Second)
	v.SetDefault("sweep.interval", "0s")
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("snowflake.node_id", -1)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Address.Xpub == "" && (c.Address.MasterPublicKey == "" || c.Address.ChainCode == "") {
		errs = append(errs, errors.New("address.xpub or address.master_public_key with address.chain_code is required"))
	}
	if c.Withdrawal.ChangeAddress == "" {
		errs = append(errs, errors.New("withdrawal.change_address is required"))
	}
	if c.Indexer.PageSize <= 0 || c.Indexer.MaxPages <= 0 {
		errs = append(errs, errors.New("indexer.page_size and indexer.max_pages must be positive"))
	}
	if c.Sweep.Interval > 0 && c.Sweep.Concurrency <= 0 {
		errs = append(errs, errors.New("sweep.concurrency must be positive"))
	}
	if c.Snowflake.NodeId > 1023 {
		errs = append(errs, fmt.Errorf("snowflake.node_id %d out of range", c.Snowflake.NodeId))
	}
	return errors.Join(errs...)
}
