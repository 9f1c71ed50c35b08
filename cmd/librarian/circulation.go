package main

import (
	"github.com/spf13/cobra"

	"librarian/internal/config"
)

func newIssueCmd(cfg *config.Config) *cobra.Command {
	var member string

	cmd := &cobra.Command{
		Use:   "issue <book>",
		Short: "Issue one copy of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := client(cfg).Issue(cmd.Context(), args[0], member)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), receipt)
		},
	}

	cmd.Flags().StringVar(&member, "member", "", "borrowing member")
	return cmd
}

func newReturnCmd(cfg *config.Config) *cobra.Command {
	var member string

	cmd := &cobra.Command{
		Use:   "return <book>",
		Short: "Return one copy of a book",
		Long: `Return one copy of a book.

Without --member the oldest entry of the borrower list is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := client(cfg).Return(cmd.Context(), args[0], member)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), receipt)
		},
	}

	cmd.Flags().StringVar(&member, "member", "", "returning member")
	return cmd
}
