package cmd

import (
	"context"
	"fmt"

	"civicsync-engine/config"
	"civicsync-engine/models"
	"civicsync-engine/store"

	"github.com/spf13/cobra"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the MongoDB indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		client, db, err := config.ConnectDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		steps := []struct {
			name string
			run  func() error
		}{
			{"issues", func() error { return models.EnsureIssueIndexes(store.NewMongoIssueStore(db).Collection()) }},
			{"users", func() error { return models.EnsureEmailIndex(store.NewMongoAccounts(db).Collection()) }},
			{"staff", func() error { return models.EnsureEmailIndex(store.NewMongoStaffDirectory(db).Collection()) }},
			{"payments", func() error { return models.EnsurePaymentIndex(store.NewMongoPaymentLedger(db).Collection()) }},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("create %s indexes: %w", step.name, err)
			}
			logger.Info("Indexes ready", "collection", step.name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}
