package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"librarydesk/internal/database"
)

var purgeOlderThanDays int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema and seed default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, _, err := openService(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the dashboard statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, svc, err := openService(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)

		st, err := svc.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List loans past their return date",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, svc, err := openService(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)

		loans, err := svc.OverdueLoans(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(loans) == 0 {
			fmt.Fprintln(out, "no overdue loans")
			return nil
		}
		for _, l := range loans {
			fmt.Fprintf(out, "%s  %-30s  %-24s  due %s\n",
				l.ID, l.BookTitle, l.CustomerName, l.ReturnDate.Format("2006-01-02"))
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete closed transactions older than a number of days",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, svc, err := openService(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)

		n, err := svc.PurgeTransactions(cmd.Context(), purgeOlderThanDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d transactions\n", n)
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeOlderThanDays, "older-than-days", 30, "Age in days past which closed transactions are removed")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
