package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/repository/mysql"
	"github.com/example/momchat/internal/service"
)

var (
	seedPassword string
	seedEmails   []string

	reportStatus string
	reportLimit  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register demo accounts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := mysql.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		users := service.NewUserService(mysql.NewUserRepository(db), &cfg.JWT)
		ctx := context.Background()
		for _, email := range seedEmails {
			u, _, err := users.Register(ctx, email, seedPassword)
			if service.KindOf(err) == service.KindConflict {
				log.Info("account already exists", zap.String("email", email))
				continue
			}
			if err != nil {
				return fmt.Errorf("register %s: %w", email, err)
			}
			log.Info("account created", zap.String("email", u.Email), zap.String("tag", u.AnonymousTag))
		}
		return nil
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List moderation reports.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		svc := service.NewReportService(mysql.NewUserRepository(db), mysql.NewMessageRepository(db),
			mysql.NewReportRepository(db), nil, nil, log)
		list, err := svc.List(context.Background(), reportStatus, reportLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tREPORTED\tREASON\tCREATED")
		for _, r := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Status, r.ReportedUserID, r.Reason, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered accounts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		list, err := service.NewUserService(mysql.NewUserRepository(db), &cfg.JWT).ListAll(context.Background())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTAG\tEMAIL\tCREATED")
		for _, u := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.AnonymousTag, u.Email, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedPassword, "password", "p", "password123",
		"Password for every seeded account.")
	seedCmd.Flags().StringSliceVarP(&seedEmails, "email", "e",
		[]string{"mom1@example.com", "mom2@example.com"}, "Accounts to create.")

	reportsCmd.Flags().StringVarP(&reportStatus, "status", "s", "",
		"Only show reports in this status (pending, reviewing, resolved, dismissed).")
	reportsCmd.Flags().IntVarP(&reportLimit, "limit", "n", 50, "Maximum number of reports.")
}
