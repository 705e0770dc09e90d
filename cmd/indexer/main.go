package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/api"
	"github.com/tokenlens/transfer-indexer/internal/chain"
	"github.com/tokenlens/transfer-indexer/internal/config"
	"github.com/tokenlens/transfer-indexer/internal/database"
	"github.com/tokenlens/transfer-indexer/internal/indexer"
	"github.com/tokenlens/transfer-indexer/internal/logger"
)

type CLIArgs struct {
	ConfigFile string `arg:"--config,env:CONFIG_FILE" default:"config.toml"`
}

func main() {
	var args CLIArgs
	arg.MustParse(&args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args CLIArgs) error {
	cfg, err := config.ReadFile(args.ConfigFile)
	if err != nil {
		return err
	}

	zlog, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}
	defer zlog.Sync() //nolint:errcheck

	db, err := database.New(&cfg.DB, zlog)
	if err != nil {
		return err
	}

	client, err := chain.Dial(ctx, &cfg.Chain, zlog)
	if err != nil {
		return err
	}
	defer client.Close()

	rpc := chain.NewClientWithBackoff(client, &cfg.Chain, zlog)
	engine := indexer.New(&cfg.Indexer, rpc, db, zlog)

	if cfg.API.Enabled {
		server := api.NewServer(&cfg.API, db, zlog)

		go func() {
			if err := server.Start(); err != nil {
				zlog.Error("query API failed", zap.Error(err))
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				zlog.Error("query API shutdown failed", zap.Error(err))
			}
		}()
	}

	err = engine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		zlog.Info("shutting down")
		return nil
	}

	return err
}
