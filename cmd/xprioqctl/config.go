package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/omeyang/xprioq/pkg/mq/xprioq"
	"github.com/omeyang/xprioq/pkg/resilience/xlimit"
)

// 支持的后端类型
const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendPulsar = "pulsar"
	backendMongo  = "mongo"
)

var (
	errEmptyConfigPath   = errors.New("xprioqctl: empty config path")
	errUnsupportedFormat = errors.New("xprioqctl: unsupported config format")
	errInvalidConfig     = errors.New("xprioqctl: invalid config")
)

// fileConfig 配置文件结构
type fileConfig struct {
	Backend   backendConfig   `koanf:"backend"`
	Client    xprioq.Config   `koanf:"client"`
	Consumer  consumerConfig  `koanf:"consumer"`
	Log       logConfig       `koanf:"log"`
	Telemetry telemetryConfig `koanf:"telemetry"`
}

type backendConfig struct {
	Type              string        `koanf:"type"`
	VisibilityTimeout time.Duration `koanf:"visibility_timeout"`
	Redis             redisConfig   `koanf:"redis"`
	Pulsar            pulsarConfig  `koanf:"pulsar"`
	Mongo             mongoConfig   `koanf:"mongo"`
}

type redisConfig struct {
	Addrs    []string `koanf:"addrs"`
	Username string   `koanf:"username"`
	Password string   `koanf:"password"`
	DB       int      `koanf:"db"`
	Prefix   string   `koanf:"prefix"`
}

type pulsarConfig struct {
	URL          string        `koanf:"url"`
	Token        string        `koanf:"token"`
	Subscription string        `koanf:"subscription"`
	ReceiveWait  time.Duration `koanf:"receive_wait"`
}

type mongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type consumerConfig struct {
	Workers  int            `koanf:"workers"`
	Limit    limitConfig    `koanf:"limit"`
	Breaker  breakerConfig  `koanf:"breaker"`
	AckRetry ackRetryConfig `koanf:"ack_retry"`
}

// limitConfig Rate 为 0 时不限流；Distributed 需要 redis 后端
type limitConfig struct {
	xlimit.Limit `koanf:",squash"`
	Distributed  bool `koanf:"distributed"`
}

// breakerConfig ConsecutiveFailures 为 0 时不启用熔断
type breakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	Timeout             time.Duration `koanf:"timeout"`
}

type ackRetryConfig struct {
	Attempts int           `koanf:"attempts"`
	Backoff  time.Duration `koanf:"backoff"`
}

type logConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	Compress   bool   `koanf:"compress"`
}

type telemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Backend: backendConfig{
			Type:              backendMemory,
			VisibilityTimeout: 30 * time.Second,
		},
		Client: xprioq.DefaultConfig(),
		Consumer: consumerConfig{
			Workers: 1,
			AckRetry: ackRetryConfig{
				Attempts: 3,
				Backoff:  100 * time.Millisecond,
			},
		},
		Log: logConfig{Level: "info", Format: "text"},
	}
}

// loadConfig 读取配置文件，按扩展名选择解析器，未出现的字段保留默认值
func loadConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, errEmptyConfigPath
	}
	parser, err := parserFor(path)
	if err != nil {
		return fileConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("xprioqctl: read config: %w", err)
	}
	return parseConfig(data, parser)
}

func parseConfig(data []byte, parser koanf.Parser) (fileConfig, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fileConfig{}, fmt.Errorf("xprioqctl: parse config: %w", err)
	}

	cfg := defaultFileConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fileConfig{}, fmt.Errorf("xprioqctl: unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedFormat, ext)
	}
}

// validate 校验与后端相关的字段；client 段在创建客户端时由 xprioq 校验
func (c fileConfig) validate() error {
	switch c.Backend.Type {
	case backendMemory:
	case backendRedis:
		if len(c.Backend.Redis.Addrs) == 0 {
			return fmt.Errorf("%w: backend.redis.addrs is empty", errInvalidConfig)
		}
	case backendPulsar:
		if c.Backend.Pulsar.URL == "" {
			return fmt.Errorf("%w: backend.pulsar.url is empty", errInvalidConfig)
		}
	case backendMongo:
		if c.Backend.Mongo.URI == "" || c.Backend.Mongo.Database == "" {
			return fmt.Errorf("%w: backend.mongo.uri and backend.mongo.database are required", errInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend type %q", errInvalidConfig, c.Backend.Type)
	}

	if c.Consumer.Workers < 1 {
		return fmt.Errorf("%w: consumer.workers must be at least 1", errInvalidConfig)
	}
	if c.Consumer.Limit.Rate > 0 {
		if err := c.Consumer.Limit.Validate(); err != nil {
			return fmt.Errorf("%w: consumer.limit: %w", errInvalidConfig, err)
		}
		if c.Consumer.Limit.Distributed && c.Backend.Type != backendRedis {
			return fmt.Errorf("%w: consumer.limit.distributed requires the redis backend", errInvalidConfig)
		}
	}
	return nil
}

// queueNames 返回 client 段配置的队列名
func (c fileConfig) queueNames() []string {
	names := make([]string, 0, len(c.Client.Queues))
	for _, q := range c.Client.Queues {
		names = append(names, q.Name)
	}
	return names
}
