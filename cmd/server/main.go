package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stylehive/stylehive-go/pkg/api"
	"github.com/stylehive/stylehive-go/pkg/config"
	"github.com/stylehive/stylehive-go/pkg/metadatastore"
	"github.com/stylehive/stylehive-go/pkg/recommend"
	"github.com/stylehive/stylehive-go/pkg/scheduler"
	"github.com/stylehive/stylehive-go/pkg/txstore"
	"github.com/stylehive/stylehive-go/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.GetLogger().Fatal("failed to load config", err, utils.Component("server"))
	}

	logger := utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting StyleHive recommendation server",
		utils.Component("server"), utils.String("environment", cfg.Environment))

	store, err := metadatastore.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize storage", err, utils.Component("server"))
	}
	defer store.Close()
	logger.Info("initialized SQLite storage",
		utils.Component("server"), utils.String("path", cfg.DatabasePath))

	if err := seedFromCSV(cfg, store, logger); err != nil {
		logger.Fatal("failed to seed data", err, utils.Component("server"))
	}

	engine, err := recommend.NewService(engineOptions(cfg.Engine), logger)
	if err != nil {
		logger.Fatal("invalid engine options", err, utils.Component("server"))
	}

	refresher, err := scheduler.NewService(engine, store, cfg.RefreshSchedule, logger)
	if err != nil {
		logger.Fatal("failed to create refresh scheduler", err, utils.Component("server"))
	}

	// Build the first snapshot before accepting traffic; an empty
	// store is fine, the engine degrades to empty artifacts.
	if err := refresher.Refresh(); err != nil {
		logger.Fatal("initial snapshot build failed", err, utils.Component("server"))
	}

	refresher.Start()
	defer refresher.Stop()

	server := api.NewServer(engine, store, refresher, cfg.Port, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("API server failed", err, utils.Component("server"))
		}
	}()

	logger.Info("server started", utils.Component("server"), utils.String("port", cfg.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down", utils.Component("server"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", err, utils.Component("server"))
	}
}

// engineOptions converts the flat config section into engine options.
func engineOptions(engine config.EngineConfig) recommend.Options {
	return recommend.Options{
		MinSupport:     engine.MinSupport,
		MinConfidence:  engine.MinConfidence,
		MaxItemsetSize: engine.MaxItemsetSize,
		CFRank:         engine.CFRank,
		TopK:           engine.TopK,
		Weights:        recommend.Weights{MBA: engine.MBAWeight, CF: engine.CFWeight},
		Aggregation:    recommend.AggregationMode(engine.Aggregation),
	}
}

// seedFromCSV imports catalog and transaction CSVs into an empty
// database. A database that already has rows is left alone, so the
// server restarts cleanly without re-importing.
func seedFromCSV(cfg *config.Config, store metadatastore.MetadataStore, logger *utils.Logger) error {
	if cfg.TransactionsCSV == "" && cfg.CatalogCSV == "" {
		return nil
	}
	count, err := store.CountTransactionRows()
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("database already populated, skipping CSV import",
			utils.Component("server"), utils.Int("rows", count))
		return nil
	}

	if cfg.CatalogCSV != "" {
		catalog, err := txstore.LoadProductCatalogFile(cfg.CatalogCSV)
		if err != nil {
			return err
		}
		if err := store.SaveProducts(catalog); err != nil {
			return err
		}
		logger.Info("imported product catalog",
			utils.Component("server"), utils.Int("products", len(catalog)))
	}
	if cfg.TransactionsCSV != "" {
		rows, err := txstore.LoadTransactionLogFile(cfg.TransactionsCSV)
		if err != nil {
			return err
		}
		if err := store.SaveTransactionRows(rows); err != nil {
			return err
		}
		logger.Info("imported transaction log",
			utils.Component("server"), utils.Int("rows", len(rows)))
	}
	return nil
}
