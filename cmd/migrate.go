package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/chainsale/database"
	"github.com/deckforge/chainsale/chainsale/logger"
	"github.com/spf13/cobra"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "create or upgrade the database schema",
	RunE: timed(func(cmd *cobra.Command, args []string) error {
		if !cfg.DB.Enabled() {
			return fmt.Errorf("no database configured")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), config.StartupTimeout)
		defer cancel()

		start := time.Now()
		db, err := database.New(ctx, dbConfig())
		if err != nil {
			logger.LogError("Failed to connect to database", err)
			return err
		}
		defer db.Close()

		if err := db.InitializeSchema(ctx); err != nil {
			logger.LogError("Migration failed", err, slog.String("database", cfg.DB.Database))
			return err
		}

		slog.Info("Migration completed successfully",
			slog.String("type", "db"),
			slog.String("database", cfg.DB.Database),
			slog.Duration("took", time.Since(start)))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(migrateCMD)
}

func dbConfig() database.DBConfig {
	return database.DBConfig{
		Host:         cfg.DB.Host,
		Port:         cfg.DB.Port,
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Database:     cfg.DB.Database,
		PoolSize:     cfg.DB.PoolSize,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxLifetime:  cfg.DB.MaxLifetime,
	}
}
