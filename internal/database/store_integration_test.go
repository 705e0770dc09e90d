//go:build integration

package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/config"
)

// Runs against a real postgres; configure it through DB_* env vars or a
// .env file. Tables are dropped at start so every run sees a clean
// slate.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	if err := godotenv.Load(); err != nil {
		t.Log("no .env file found, proceeding without it")
	}

	cfg := config.DB{
		Host:             envOr("DB_HOST", "localhost"),
		Port:             envIntOr("DB_PORT", 5432),
		Username:         envOr("DB_USERNAME", "indexer"),
		Password:         envOr("DB_PASSWORD", "indexer"),
		DBName:           envOr("DB_NAME", "transfers_test"),
		DropTableAtStart: true,
	}

	db, err := New(&cfg, zap.NewNop())
	require.NoError(t, err)

	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func transfer(txHash string, logIndex uint, block uint64) *Transfer {
	return &Transfer{
		TxHash:      txHash,
		LogIndex:    logIndex,
		BlockNumber: block,
		BlockHash:   "0xb" + strconv.FormatUint(block, 16),
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "0x2222222222222222222222222222222222222222",
		Amount:      "1000",
		Timestamp:   block * 10,
	}
}

func TestSaveTransfersIgnoresDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inserted, err := db.SaveTransfers(ctx, []*Transfer{
		transfer("0xaa", 0, 10),
		transfer("0xaa", 1, 10),
		transfer("0xbb", 0, 11),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, inserted)

	// Overlapping batch: only the unseen natural key lands.
	inserted, err = db.SaveTransfers(ctx, []*Transfer{
		transfer("0xaa", 0, 10),
		transfer("0xcc", 0, 12),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, inserted)

	count, err := db.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestFrontier(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	frontier, err := db.Frontier(ctx)
	require.NoError(t, err)
	assert.Nil(t, frontier)

	_, err = db.SaveTransfers(ctx, []*Transfer{
		transfer("0xaa", 0, 10),
		transfer("0xbb", 0, 30),
		transfer("0xcc", 0, 20),
	})
	require.NoError(t, err)

	frontier, err = db.Frontier(ctx)
	require.NoError(t, err)
	require.NotNil(t, frontier)
	assert.EqualValues(t, 30, frontier.BlockNumber)
	assert.Equal(t, "0xb1e", frontier.BlockHash)
}

func TestOldestIDsAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.SaveTransfers(ctx, []*Transfer{
		transfer("0xaa", 0, 30),
		transfer("0xbb", 0, 10),
		transfer("0xcc", 0, 20),
		transfer("0xdd", 0, 10),
	})
	require.NoError(t, err)

	ids, err := db.OldestIDs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	deleted, err := db.DeleteByIDs(ctx, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	// Only the highest block survives.
	remaining, err := db.ListTransfers(ctx, TransferFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.EqualValues(t, 30, remaining[0].BlockNumber)
}

func TestDeleteByIDsSpansBatches(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	total := deleteBatchSize + 200
	transfers := make([]*Transfer, 0, total)
	for i := 0; i < total; i++ {
		transfers = append(transfers, transfer(fmt.Sprintf("0x%04x", i), 0, uint64(i+1)))
	}
	_, err := db.SaveTransfers(ctx, transfers)
	require.NoError(t, err)

	// More candidates than fit in one DELETE statement.
	ids, err := db.OldestIDs(ctx, int64(deleteBatchSize+100))
	require.NoError(t, err)
	require.Len(t, ids, deleteBatchSize+100)

	deleted, err := db.DeleteByIDs(ctx, ids)
	require.NoError(t, err)
	assert.EqualValues(t, deleteBatchSize+100, deleted)

	count, err := db.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, count)
}

func TestDeleteFromBlock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.SaveTransfers(ctx, []*Transfer{
		transfer("0xaa", 0, 10),
		transfer("0xbb", 0, 50),
		transfer("0xcc", 0, 51),
	})
	require.NoError(t, err)

	deleted, err := db.DeleteFromBlock(ctx, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := db.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestListTransfersFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	carol := "0x3333333333333333333333333333333333333333"

	a := transfer("0xaa", 0, 10)
	b := transfer("0xbb", 0, 20)
	b.FromAddress = carol
	c := transfer("0xcc", 0, 30)
	c.ToAddress = carol

	_, err := db.SaveTransfers(ctx, []*Transfer{a, b, c})
	require.NoError(t, err)

	all, err := db.ListTransfers(ctx, TransferFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Block-descending order.
	assert.EqualValues(t, 30, all[0].BlockNumber)
	assert.EqualValues(t, 10, all[2].BlockNumber)

	fromCarol, err := db.ListTransfers(ctx, TransferFilter{From: carol})
	require.NoError(t, err)
	require.Len(t, fromCarol, 1)
	assert.Equal(t, "0xbb", fromCarol[0].TxHash)

	touchingCarol, err := db.ListTransfers(ctx, TransferFilter{Address: carol})
	require.NoError(t, err)
	assert.Len(t, touchingCarol, 2)

	limited, err := db.ListTransfers(ctx, TransferFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
