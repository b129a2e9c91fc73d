package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"librarydesk/internal/config"
	"librarydesk/internal/database"
	"librarydesk/internal/repositories"
	"librarydesk/internal/services"
)

var (
	// Global flags
	dbDriver string
	dbURL    string
)

var rootCmd = &cobra.Command{
	Use:   "librarydesk",
	Short: "Front desk service for a lending, selling and reading-room library",
	Long: `librarydesk keeps the book catalog, customers and the borrow/sale/read
transaction log of a small library, and serves them over a JSON API.

Books are offered in one mode (reading, borrow or sale); issuing the last copy
flips the status to its _out form and returning it restores the base status.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "Database driver: postgres or sqlite (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database URL or sqlite file (overrides DATABASE_URL)")

	rootCmd.AddCommand(serveCmd, migrateCmd, statsCmd, overdueCmd, purgeCmd)
}

// loadConfig reads the environment and applies the command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if dbDriver != "" {
		cfg.DBDriver = dbDriver
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openService connects, migrates and wires the repositories into a LibraryService.
func openService(cfg config.Config) (*gorm.DB, services.LibraryService, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}

	bookRepo := repositories.NewBookRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	svc := services.NewLibraryService(db, bookRepo, customerRepo, txRepo, settingsRepo)
	log.Printf("[INFO] connected to %s database", cfg.DBDriver)
	return db, svc, nil
}
