package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"librarian/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.NewConfig()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "librarian",
		Short:         "Library catalog: books, members, issue and return",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.Client.APIURL, "api", cfg.Client.APIURL, "API base URL for client commands")
	rootCmd.PersistentFlags().StringVar(&cfg.Client.APIToken, "token", cfg.Client.APIToken, "bearer token for write commands")

	rootCmd.AddCommand(
		newServeCmd(cfg),
		newMigrateCmd(cfg),
		newHashPasswordCmd(),
		newLoginCmd(cfg),
		newBookCmd(cfg),
		newMemberCmd(cfg),
		newIssueCmd(cfg),
		newReturnCmd(cfg),
		newDrillCmd(cfg),
	)

	return rootCmd
}
