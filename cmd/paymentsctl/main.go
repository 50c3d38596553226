package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "Operate the booking payments service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	rootCmd.PersistentFlags().Bool("json", false, "print JSON instead of text")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(verifyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
