package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"restosite/common"
	"restosite/database"
	"restosite/models"
)

var tokenUser int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := common.ConnectDb(cfg.DBDriver, cfg.DBDSN, log)
		if err != nil {
			return err
		}
		return database.RunMigrations(db, log)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for the sections sync API",
	Long: `Mint an API token for a user, for use with "restosite sections".

Examples:
  restosite token --user 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		if tokenUser <= 0 {
			return fmt.Errorf("--user is required")
		}

		db, err := common.ConnectDb(cfg.DBDriver, cfg.DBDSN, log)
		if err != nil {
			return err
		}
		var user models.User
		if err := db.First(&user, tokenUser).Error; err != nil {
			return fmt.Errorf("user %s: %w", strconv.Itoa(tokenUser), err)
		}

		token, expiresAt, err := common.IssueToken(cfg.JWTSecret, user.TenantID(), cfg.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	tokenCmd.Flags().IntVar(&tokenUser, "user", 0, "user id the token acts for")
	rootCmd.AddCommand(migrateCmd, tokenCmd)
}
