package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"librarian/internal/activity"
	"librarian/internal/catalog"
	"librarian/internal/chaos"
	"librarian/internal/circulation"
	"librarian/internal/config"
	"librarian/internal/membership"
	"librarian/internal/sequence"
)

func newDrillCmd(cfg *config.Config) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "drill <book>",
		Short: "Fire concurrent issues at one book and check the copy counts held",
		Long: `Fire concurrent issues at one book directly against the database and
check that no book's available count left [0, total]. Issued copies are put
back afterwards; the borrower list is not touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(cfg.Log)

			db, err := openDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			allocator := sequence.NewAllocator(db, logger)
			journal := activity.NewJournal(db, logger)
			books := catalog.NewService(db, allocator, journal, logger)
			members := membership.NewService(db, allocator, journal, logger)
			ledger := circulation.NewService(db, books, members, journal, logger)

			result, err := chaos.NewEngine(logger).Run(ctx, chaos.IssueStorm(db, ledger, args[0], concurrency))
			if result != nil {
				if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if !result.HypothesisHeld {
				return fmt.Errorf("hypothesis violated: %d violations", len(result.Violations))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 50, "simultaneous issue requests")
	return cmd
}
