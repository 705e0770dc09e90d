package database

// Transfer is one indexed ERC-20 Transfer event. The (tx_hash, log_index)
// pair is the natural key; overlapping scans rely on the unique index to
// make bulk inserts idempotent.
type Transfer struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash      string `gorm:"type:varchar(66);uniqueIndex:idx_tx_log,priority:1" json:"txHash"`
	LogIndex    uint   `gorm:"uniqueIndex:idx_tx_log,priority:2" json:"logIndex"`
	BlockNumber uint64 `gorm:"index" json:"blockNumber"`
	BlockHash   string `gorm:"type:varchar(66)" json:"blockHash"`
	FromAddress string `gorm:"type:varchar(42);index" json:"from"`
	ToAddress   string `gorm:"type:varchar(42);index" json:"to"`

	// Amount is the value in the token's smallest unit, decimal-encoded.
	// varchar(78) fits the largest uint256.
	Amount string `gorm:"type:varchar(78)" json:"amount"`

	Timestamp uint64 `gorm:"index" json:"timestamp"`
}

func (Transfer) TableName() string {
	return "transfers"
}
