package database

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tokenlens/transfer-indexer/internal/config"
)

const insertBatchSize = 1000

type DB struct {
	g      *gorm.DB
	logger *zap.Logger
}

func New(cfg *config.DB, log *zap.Logger) (*DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to the DB")
	}

	log.Debug("connected to the DB")

	if cfg.DropTableAtStart {
		if err := db.Migrator().DropTable(&Transfer{}); err != nil {
			return nil, errors.Wrap(err, "dropping tables")
		}

		log.Info("DB tables dropped at start")
	}

	if err := db.AutoMigrate(&Transfer{}); err != nil {
		return nil, errors.Wrap(err, "migrating DB entities")
	}

	log.Debug("migrated DB entities")

	return &DB{g: db, logger: log}, nil
}

func Connect(cfg *config.DB) (*gorm.DB, error) {
	gormCfg := gorm.Config{
		Logger:          gormlogger.Default.LogMode(getGormLogLevel(cfg)),
		CreateBatchSize: insertBatchSize,
	}

	return gorm.Open(postgres.Open(formatDSN(cfg)), &gormCfg)
}

func getGormLogLevel(cfg *config.DB) gormlogger.LogLevel {
	if cfg.LogQueries {
		return gormlogger.Info
	}

	return gormlogger.Silent
}

func formatDSN(cfg *config.DB) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.DBName,
	}

	return u.String()
}
