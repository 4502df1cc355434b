package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/dbehnke/gofax/internal/calllog"
)

// newCallLogCommand exposes the CDR store (internal/calllog) for operator
// inspection, mirroring the teacher's own lookup-table inspection habit
// (internal/lookup reads back what internal/database wrote).
func newCallLogCommand() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "calllog",
		Short: "Inspect the call-detail-record database",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "data/calllog.db", "path to the call-log SQLite database")

	recent := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently completed calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := calllog.NewDB(calllog.Config{Path: dbPath}, log.New(cmd.ErrOrStderr(), "calllog: ", 0))
			if err != nil {
				return err
			}
			defer db.Close()

			repo := db.Repository()
			records, err := repo.Recent(limit)
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s %s<->%s pages=%d/%d %s (%s)\n",
					rec.ID, rec.StartedAt.Format("2006-01-02 15:04:05"),
					rec.LocalIdent, rec.RemoteIdent, rec.PagesSent, rec.PagesReceived,
					rec.CompletionText, rec.Duration())
			}
			return nil
		},
	}
	recent.Flags().IntVar(&limit, "limit", 20, "maximum number of records to show")
	cmd.AddCommand(recent)

	return cmd
}
