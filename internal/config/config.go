package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

func ReadFile(filepath string) (*Config, error) {
	cfg := DefaultConfig

	if _, err := toml.DecodeFile(filepath, &cfg); err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

type Config struct {
	DB      DB      `toml:"db"`
	Chain   Chain   `toml:"chain"`
	Indexer Indexer `toml:"indexer"`
	API     API     `toml:"api"`
	Log     Log     `toml:"log"`
}

var DefaultConfig = Config{
	DB:      defaultDB,
	Chain:   defaultChain,
	Indexer: defaultIndexer,
	API:     defaultAPI,
	Log:     defaultLog,
}

type DB struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	Username         string `toml:"username"`
	Password         string `toml:"password"`
	DBName           string `toml:"db_name"`
	LogQueries       bool   `toml:"log_queries"`
	DropTableAtStart bool   `toml:"drop_table_at_start"`
}

var defaultDB = DB{
	Host: "localhost",
	Port: 5432,
}

type Chain struct {
	NodeURL         string `toml:"node_url"`
	ContractAddress string `toml:"contract_address"`

	RequestTimeoutMillis uint64 `toml:"request_timeout_millis"`

	// Retry settings for RPC calls that fail transiently.
	MaxRetries              uint64  `toml:"max_retries"`
	RetryInitialDelayMillis uint64  `toml:"retry_initial_delay_millis"`
	RetryMaxIntervalMillis  uint64  `toml:"retry_max_interval_millis"`
	RetryJitterFactor       float64 `toml:"retry_jitter_factor"`
}

var defaultChain = Chain{
	RequestTimeoutMillis:    3000,
	MaxRetries:              5,
	RetryInitialDelayMillis: 500,
	RetryMaxIntervalMillis:  10000,
	RetryJitterFactor:       0.5,
}

func (c *Chain) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

func (c *Chain) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialDelayMillis) * time.Millisecond
}

func (c *Chain) RetryMaxInterval() time.Duration {
	return time.Duration(c.RetryMaxIntervalMillis) * time.Millisecond
}

type Indexer struct {
	// ChunkSize is the number of blocks covered by a single log fetch.
	ChunkSize uint64 `toml:"chunk_size"`

	// MaxRecords caps the number of stored transfers and doubles as the
	// per-cycle fetch quota.
	MaxRecords int64 `toml:"max_records"`

	// Confirmations is the depth below the chain head considered final.
	Confirmations uint64 `toml:"confirmations"`

	PollIntervalSeconds uint64 `toml:"poll_interval_seconds"`
	ChunkPaceMillis     uint64 `toml:"chunk_pace_millis"`

	// HeaderConcurrency bounds parallel block header lookups within a chunk.
	HeaderConcurrency int `toml:"header_concurrency"`
}

var defaultIndexer = Indexer{
	ChunkSize:           100,
	MaxRecords:          1000,
	Confirmations:       12,
	PollIntervalSeconds: 15,
	ChunkPaceMillis:     200,
	HeaderConcurrency:   8,
}

func (i *Indexer) PollInterval() time.Duration {
	return time.Duration(i.PollIntervalSeconds) * time.Second
}

func (i *Indexer) ChunkPace() time.Duration {
	return time.Duration(i.ChunkPaceMillis) * time.Millisecond
}

type API struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

var defaultAPI = API{
	Enabled: true,
	Host:    "0.0.0.0",
	Port:    8080,
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

var defaultLog = Log{
	Level:  "info",
	Format: "json",
}

func (c *Config) Validate() error {
	if c.Chain.NodeURL == "" {
		return errors.New("chain.node_url is required")
	}
	if c.Chain.ContractAddress == "" {
		return errors.New("chain.contract_address is required")
	}
	if c.Indexer.ChunkSize == 0 {
		return errors.New("indexer.chunk_size must be positive")
	}
	if c.Indexer.MaxRecords <= 0 {
		return errors.New("indexer.max_records must be positive")
	}
	if c.Chain.MaxRetries == 0 {
		return errors.New("chain.max_retries must be positive")
	}
	if c.Indexer.HeaderConcurrency <= 0 {
		c.Indexer.HeaderConcurrency = defaultIndexer.HeaderConcurrency
	}

	return nil
}

// applyEnvOverrides lets deployments keep DB credentials out of the
// config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("DB_USERNAME"); v != "" {
		c.DB.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DB.DBName = v
	}
	if v := os.Getenv("NODE_URL"); v != "" {
		c.Chain.NodeURL = v
	}
}
