package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"librarian/internal/catalog"
	"librarian/internal/clients"
	"librarian/internal/config"
)

func newBookCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Add, show and look up books",
	}
	cmd.AddCommand(newBookAddCmd(cfg), newBookShowCmd(cfg), newBookLookupCmd(cfg))
	return cmd
}

func newBookAddCmd(cfg *config.Config) *cobra.Command {
	var nb catalog.NewBook
	var available int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a title; the code is allocated unless --code is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("available") {
				nb.AvailableCopies = &available
			}

			book, err := client(cfg).AddBook(cmd.Context(), nb)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), book)
		},
	}

	cmd.Flags().StringVar(&nb.Code, "code", "", "book code (default: next AIPSLIB code)")
	cmd.Flags().StringVar(&nb.Title, "title", "", "title")
	cmd.Flags().StringVar(&nb.Author, "author", "", "author")
	cmd.Flags().StringVar(&nb.Category, "category", "", "category")
	cmd.Flags().IntVar(&nb.Year, "year", 0, "publication year")
	cmd.Flags().IntVar(&nb.TotalCopies, "total", 1, "total copies")
	cmd.Flags().IntVar(&available, "available", 0, "available copies (default: total)")
	cmd.Flags().StringVar(&nb.ShelfLocation, "shelf", "", "shelf location")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newBookShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a book and its borrowers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := client(cfg).GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), book)
		},
	}
}

func newBookLookupCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <ref>",
		Short: "Resolve a loosely typed reference such as 42 or aipslib000042",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := client(cfg).LookupBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func client(cfg *config.Config) *clients.Client {
	return clients.NewClient(cfg.Client.APIURL, cfg.Client.APIToken)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
