package cmd

import (
	"errors"
	"fmt"
	"time"

	"civicsync-engine/models"
	authUtils "civicsync-engine/utils"

	"github.com/spf13/cobra"
)

var (
	tokenUserID string
	tokenName   string
	tokenEmail  string
	tokenRole   string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed token",
	Long:  `Mints an HS256 token with JWT_SECRET. Use --role system to provision the payment relay that confirms boosts and subscriptions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUserID == "" {
			return errors.New("--user-id is required")
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := authUtils.GenerateToken(models.Actor{
			UserID: tokenUserID,
			Name:   tokenName,
			Email:  tokenEmail,
			Role:   models.Role(tokenRole),
		}, cfg.JWTSecret, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user-id", "", "subject user id")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(models.RoleCitizen), "citizen, staff, admin or system")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", authUtils.TokenTTL, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
