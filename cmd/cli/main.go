package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/dqcore/cmd/cli/commands"
	"github.com/inferloop/dqcore/pkg/constants"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dqcore-cli",
		Short: constants.AppDescription,
		Long: `A command-line interface for running declarative data quality checks
against CSV files and SQL databases.`,
		Version: constants.AppVersion,
	}

	rootCmd.AddCommand(commands.NewCheckCmd())
	rootCmd.AddCommand(commands.NewValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
