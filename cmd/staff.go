package cmd

import (
	"context"
	"errors"
	"fmt"

	"civicsync-engine/config"
	"civicsync-engine/models"
	"civicsync-engine/store"

	"github.com/spf13/cobra"
)

var (
	staffName   string
	staffEmail  string
	staffUserID string
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Manage the staff directory",
}

var staffAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a staff member",
	RunE: func(cmd *cobra.Command, args []string) error {
		if staffName == "" || staffEmail == "" {
			return errors.New("--name and --email are required")
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		client, db, err := config.ConnectDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		staff, err := store.NewMongoStaffDirectory(db).AddStaff(cmd.Context(), &models.Staff{
			Name:   staffName,
			Email:  staffEmail,
			UserID: staffUserID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", staff.ID.Hex(), staff.Name, staff.Email)
		return nil
	},
}

func init() {
	staffAddCmd.Flags().StringVar(&staffName, "name", "", "display name")
	staffAddCmd.Flags().StringVar(&staffEmail, "email", "", "contact email")
	staffAddCmd.Flags().StringVar(&staffUserID, "user-id", "", "identity the staff member logs in with (enables self-assignment)")
	staffCmd.AddCommand(staffAddCmd)
	rootCmd.AddCommand(staffCmd)
}
