package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Frontier is the highest-block record currently in the store, used for
// reorg comparison against the chain's view of the same height.
type Frontier struct {
	BlockNumber uint64
	BlockHash   string
}

// Frontier returns nil without error when the store is empty.
func (db *DB) Frontier(ctx context.Context) (*Frontier, error) {
	var t Transfer

	err := db.g.WithContext(ctx).
		Order("block_number DESC, id DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "querying frontier")
	}

	return &Frontier{BlockNumber: t.BlockNumber, BlockHash: t.BlockHash}, nil
}

// SaveTransfers bulk-inserts transfers, silently skipping rows whose
// natural key already exists. Returns the number of rows actually
// inserted.
func (db *DB) SaveTransfers(ctx context.Context, transfers []*Transfer) (int64, error) {
	if len(transfers) == 0 {
		return 0, nil
	}

	result := db.g.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&transfers)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "inserting transfers")
	}

	return result.RowsAffected, nil
}

func (db *DB) Count(ctx context.Context) (int64, error) {
	var count int64

	err := db.g.WithContext(ctx).Model(&Transfer{}).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting transfers")
	}

	return count, nil
}

// OldestIDs returns the ids of the n lowest-block records, ties broken
// by id so repeated calls see a stable order.
func (db *DB) OldestIDs(ctx context.Context, n int64) ([]uint64, error) {
	var ids []uint64

	err := db.g.WithContext(ctx).
		Model(&Transfer{}).
		Order("block_number ASC, id ASC").
		Limit(int(n)).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "selecting oldest transfers")
	}

	return ids, nil
}

// deleteBatchSize bounds a single DELETE ... IN (...) statement so a
// large eviction, e.g. after lowering the cap, cannot hold row locks
// for the whole excess at once.
const deleteBatchSize = 1000

func (db *DB) DeleteByIDs(ctx context.Context, ids []uint64) (int64, error) {
	var deleted int64
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		result := db.g.WithContext(ctx).Delete(&Transfer{}, ids[start:end])
		if result.Error != nil {
			return deleted, errors.Wrap(result.Error, "deleting transfers by id")
		}

		deleted += result.RowsAffected
	}

	return deleted, nil
}

// DeleteFromBlock removes every record at or above the given block. Used
// by reorg rollback to truncate the diverged suffix.
func (db *DB) DeleteFromBlock(ctx context.Context, block uint64) (int64, error) {
	result := db.g.WithContext(ctx).
		Where("block_number >= ?", block).
		Delete(&Transfer{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "deleting transfers from block")
	}

	return result.RowsAffected, nil
}

// TransferFilter narrows ListTransfers. Address matches either side of a
// transfer; From and To match their respective sides only. A Limit <= 0
// means no limit beyond the retention cap already bounding the table.
type TransferFilter struct {
	From    string
	To      string
	Address string
	Limit   int
}

// ListTransfers is the read surface for the query layer: block-descending,
// filterable, limited.
func (db *DB) ListTransfers(ctx context.Context, filter TransferFilter) ([]Transfer, error) {
	q := db.g.WithContext(ctx).Model(&Transfer{}).
		Order("block_number DESC, id DESC")

	if filter.From != "" {
		q = q.Where("from_address = ?", filter.From)
	}
	if filter.To != "" {
		q = q.Where("to_address = ?", filter.To)
	}
	if filter.Address != "" {
		q = q.Where("from_address = ? OR to_address = ?", filter.Address, filter.Address)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var transfers []Transfer
	if err := q.Find(&transfers).Error; err != nil {
		return nil, errors.Wrap(err, "listing transfers")
	}

	return transfers, nil
}
