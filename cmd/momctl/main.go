package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/repository/mysql"
)

// Flag variables.
var (
	configPath string
	cfg        *config.Config
	log        *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "momctl",
	Short:         "Operational tooling for the momchat backend.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		log, err = logging.Init(&cfg.Log)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MOMCHAT_CONFIG"),
		"Path to a config file. Environment variables with the MOMCHAT_ prefix override it.")
	rootCmd.AddCommand(migrateCmd, seedCmd, reportsCmd, usersCmd, tokenCmd)
}

// openDB 不走全局 Init，连接失败时返回错误而不是退出
func openDB() (*gorm.DB, error) {
	db, err := mysql.Open(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := mysql.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema migrated", zap.Int("tables", len(mysql.Models())))
		return nil
	},
}
