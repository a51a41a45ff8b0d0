package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mityayka1/pkgraph/internal/config"
	"github.com/mityayka1/pkgraph/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "pkgraphctl",
	Short: "PKGraph operator CLI: migrate, seed, approve/reject, audit",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(bootstrapOwnerCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(auditCmd)
}

// openStore loads config and opens the store, the shared setup every
// subcommand here needs before it can do anything.
func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.Open(ctx, cfg.DB.URL, cfg.DB.MaxConns)
}

func fatalf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.RedString(format, args...))
	os.Exit(1)
}

func successf(format string, args ...any) {
	fmt.Println(color.GreenString(format, args...))
}
