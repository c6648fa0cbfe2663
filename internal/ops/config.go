package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"tradeledger/internal/ingest"
	"tradeledger/internal/ingest/feed"
	"tradeledger/internal/order"
	"tradeledger/pkg/conn"
)

const (
	StoreMemory = "memory"
	StorePG     = "pg"
)

// EnvPostgresDSN overrides postgres.dsn when set.
const EnvPostgresDSN = "LEDGER_PG_DSN"

// FileConfig mirrors the YAML/JSON config layout.
type FileConfig struct {
	Store      StoreConfig      `json:"store" yaml:"store"`
	Postgres   PostgresConfig   `json:"postgres" yaml:"postgres"`
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Ingest     IngestConfig     `json:"ingest" yaml:"ingest"`
	Order      OrderConfig      `json:"order" yaml:"order"`
	Feed       FeedConfig       `json:"feed" yaml:"feed"`
	DeadLetter DeadLetterConfig `json:"deadLetter" yaml:"dead_letter"`
	Profiling  ProfilingConfig  `json:"profiling" yaml:"profiling"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// StoreConfig selects the ledger store implementation.
type StoreConfig struct {
	Kind    string `json:"kind" yaml:"kind"`
	Migrate *bool  `json:"migrate" yaml:"migrate"`
}

// PostgresConfig describes the relational store connection.
type PostgresConfig struct {
	DSN             string            `json:"dsn" yaml:"dsn"`
	Host            string            `json:"host" yaml:"host"`
	Port            int               `json:"port" yaml:"port"`
	User            string            `json:"user" yaml:"user"`
	Password        string            `json:"password" yaml:"password"`
	Database        string            `json:"database" yaml:"database"`
	SSLMode         string            `json:"sslMode" yaml:"ssl_mode"`
	Params          map[string]string `json:"params" yaml:"params"`
	MaxOpenConns    int               `json:"maxOpenConns" yaml:"max_open_conns"`
	MaxIdleConns    int               `json:"maxIdleConns" yaml:"max_idle_conns"`
	ConnMaxLifetime string            `json:"connMaxLifetime" yaml:"conn_max_lifetime"`
}

// HTTPConfig describes the query/command API listener.
type HTTPConfig struct {
	Addr            string `json:"addr" yaml:"addr"`
	ShutdownTimeout string `json:"shutdownTimeout" yaml:"shutdown_timeout"`
}

// IngestConfig sizes the ingestion worker pool.
type IngestConfig struct {
	Workers         int `json:"workers" yaml:"workers"`
	QueueSize       int `json:"queueSize" yaml:"queue_size"`
	MaxRedeliveries int `json:"maxRedeliveries" yaml:"max_redeliveries"`
}

// OrderConfig bounds the compare-and-set retry loop.
type OrderConfig struct {
	MaxAttempts int `json:"maxAttempts" yaml:"max_attempts"`
}

// FeedConfig describes the upstream websocket feed. An empty URL disables it.
type FeedConfig struct {
	URL           string `json:"url" yaml:"url"`
	ReadTimeout   string `json:"readTimeout" yaml:"read_timeout"`
	PingInterval  string `json:"pingInterval" yaml:"ping_interval"`
	MaxReconnects int    `json:"maxReconnects" yaml:"max_reconnects"`
}

// DeadLetterConfig locates the SQLite dead-letter journal. An empty path
// disables it.
type DeadLetterConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled         bool              `json:"enabled" yaml:"enabled"`
	ApplicationName string            `json:"applicationName" yaml:"application_name"`
	ServerAddress   string            `json:"serverAddress" yaml:"server_address"`
	Tags            map[string]string `json:"tags" yaml:"tags"`
}

// MetricsConfig controls the periodic metrics log line.
type MetricsConfig struct {
	LogInterval string `json:"logInterval" yaml:"log_interval"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	StoreKind        string
	Migrate          bool
	Postgres         conn.Option
	HTTPAddr         string
	ShutdownTimeout  time.Duration
	Ingest           ingest.Config
	OrderMaxAttempts int
	Feed             *feed.Config
	DeadLetterPath   string
	Profiling        ProfilingConfig
	MetricsInterval  time.Duration
}

// Load reads a YAML or JSON config file, chosen by extension, applies the
// environment and then each override in order. An empty path yields the
// defaults.
func Load(path string, overrides ...func(*FileConfig)) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, err
		}
		if err := Decode(path, data, &cfg); err != nil {
			return Loaded{}, err
		}
	}
	if dsn := os.Getenv(EnvPostgresDSN); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	for _, apply := range overrides {
		apply(&cfg)
	}
	return Resolve(cfg)
}

// Decode unmarshals data by the extension of path.
func Decode(path string, data []byte, cfg *FileConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := sonic.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %q", filepath.Ext(path))
	}
	return nil
}

// Resolve applies defaults and validates cfg.
func Resolve(cfg FileConfig) (Loaded, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Store.Kind))
	if kind == "" {
		kind = StoreMemory
	}
	if kind != StoreMemory && kind != StorePG {
		return Loaded{}, fmt.Errorf("store kind must be %q or %q, got %q", StoreMemory, StorePG, cfg.Store.Kind)
	}

	connMaxLifetime, err := parseDuration("postgres.connMaxLifetime", cfg.Postgres.ConnMaxLifetime, 0)
	if err != nil {
		return Loaded{}, err
	}
	shutdownTimeout, err := parseDuration("http.shutdownTimeout", cfg.HTTP.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return Loaded{}, err
	}
	metricsInterval, err := parseDuration("metrics.logInterval", cfg.Metrics.LogInterval, time.Minute)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Ingest.Workers < 0 || cfg.Ingest.QueueSize < 0 || cfg.Ingest.MaxRedeliveries < 0 {
		return Loaded{}, fmt.Errorf("ingest sizes must be >= 0")
	}
	if cfg.Order.MaxAttempts < 0 {
		return Loaded{}, fmt.Errorf("order maxAttempts must be >= 0")
	}

	feedCfg, err := resolveFeed(cfg.Feed)
	if err != nil {
		return Loaded{}, err
	}

	migrate := true
	if cfg.Store.Migrate != nil {
		migrate = *cfg.Store.Migrate
	}
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	maxAttempts := cfg.Order.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = order.DefaultMaxAttempts
	}
	profiling := cfg.Profiling
	if profiling.ApplicationName == "" {
		profiling.ApplicationName = "tradeledger"
	}
	if profiling.Enabled && profiling.ServerAddress == "" {
		return Loaded{}, fmt.Errorf("profiling serverAddress is empty")
	}

	return Loaded{
		StoreKind: kind,
		Migrate:   migrate,
		Postgres: conn.Option{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			Database:        cfg.Postgres.Database,
			SSLMode:         cfg.Postgres.SSLMode,
			Params:          cfg.Postgres.Params,
			ConnString:      cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		HTTPAddr:        addr,
		ShutdownTimeout: shutdownTimeout,
		Ingest: ingest.Config{
			Workers:         cfg.Ingest.Workers,
			QueueSize:       cfg.Ingest.QueueSize,
			MaxRedeliveries: cfg.Ingest.MaxRedeliveries,
		},
		OrderMaxAttempts: maxAttempts,
		Feed:             feedCfg,
		DeadLetterPath:   cfg.DeadLetter.Path,
		Profiling:        profiling,
		MetricsInterval:  metricsInterval,
	}, nil
}

func resolveFeed(cfg FeedConfig) (*feed.Config, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return nil, fmt.Errorf("feed url must use ws:// or wss://, got %q", cfg.URL)
	}
	readTimeout, err := parseDuration("feed.readTimeout", cfg.ReadTimeout, 0)
	if err != nil {
		return nil, err
	}
	pingInterval, err := parseDuration("feed.pingInterval", cfg.PingInterval, 0)
	if err != nil {
		return nil, err
	}
	if cfg.MaxReconnects < 0 {
		return nil, fmt.Errorf("feed maxReconnects must be >= 0")
	}
	return &feed.Config{
		URL:           cfg.URL,
		ReadTimeout:   readTimeout,
		PingInterval:  pingInterval,
		MaxReconnects: cfg.MaxReconnects,
	}, nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0", field)
	}
	return d, nil
}
