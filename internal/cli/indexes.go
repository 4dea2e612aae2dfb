package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/texresolve/accounts-api/internal/infrastructure/config"
	mongodb "github.com/texresolve/accounts-api/internal/infrastructure/db/mongo"
	"github.com/texresolve/accounts-api/pkg/logger"
)

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create the user collection indexes and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: cfg.Telemetry.ServiceName})

		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Mongo.Timeout,
		})
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		if err := mongodb.NewUserRepository(db, cfg.Mongo.Timeout).EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("user indexes ensured")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ensureIndexesCmd)
}
