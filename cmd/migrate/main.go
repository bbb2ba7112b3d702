// Command migrate applies the ledger schema to the configured database.
package main

import (
	"fmt"
	"os"

	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/repository/postgres"
	"github.com/Nzyazin/cashledger/pkg/config"
	"github.com/Nzyazin/cashledger/pkg/postgresdb"
)

func main() {
	cfg, err := config.LoadDB(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, cleanup, err := logger.NewLogger(logger.Config{Dir: cfg.LogDir, Debug: cfg.LogDebug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	db, err := postgresdb.NewPostgresDB(cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect", logger.ErrorField("error", err))
		cleanup()
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(db.DB.DB, log); err != nil {
		log.Error("Migration failed", logger.ErrorField("error", err))
		db.Close()
		cleanup()
		os.Exit(1)
	}
}
