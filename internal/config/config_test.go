package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[db]
host = "db.internal"
port = 5433
username = "indexer"
db_name = "transfers"

[chain]
node_url = "https://rpc.example.org"
contract_address = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
max_retries = 7

[indexer]
chunk_size = 50
max_records = 500
confirmations = 6

[log]
level = "debug"
format = "console"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestReadFile(t *testing.T) {
	cfg, err := ReadFile(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 5433, cfg.DB.Port)
	assert.Equal(t, "https://rpc.example.org", cfg.Chain.NodeURL)
	assert.EqualValues(t, 7, cfg.Chain.MaxRetries)
	assert.EqualValues(t, 50, cfg.Indexer.ChunkSize)
	assert.EqualValues(t, 500, cfg.Indexer.MaxRecords)
	assert.EqualValues(t, 6, cfg.Indexer.Confirmations)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Values absent from the file keep their defaults.
	assert.EqualValues(t, defaultIndexer.PollIntervalSeconds, cfg.Indexer.PollIntervalSeconds)
	assert.Equal(t, defaultChain.RetryInitialDelayMillis, cfg.Chain.RetryInitialDelayMillis)
	assert.True(t, cfg.API.Enabled)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateRejectsMissingNodeURL(t *testing.T) {
	cfg := DefaultConfig
	cfg.Chain.ContractAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroChunkSize(t *testing.T) {
	cfg := DefaultConfig
	cfg.Chain.NodeURL = "https://rpc.example.org"
	cfg.Chain.ContractAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	cfg.Indexer.ChunkSize = 0

	require.Error(t, cfg.Validate())
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaultChain
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.RetryInitialDelay())

	idx := defaultIndexer
	assert.Equal(t, 15*time.Second, idx.PollInterval())
	assert.Equal(t, 200*time.Millisecond, idx.ChunkPace())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("NODE_URL", "wss://other.example.org")

	cfg, err := ReadFile(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.DB.Password)
	assert.Equal(t, "wss://other.example.org", cfg.Chain.NodeURL)
}
