package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/internal/config"
)

type ValidateOptions struct {
	SuiteFile   string
	Environment string
	Verbose     bool
}

func NewValidateCmd() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a check suite file without running it",
		Long: `Parse a suite file, resolve its environment overrides and validate every
check block against the engine's parameter requirements.`,
		Example: `  # Validate the suite for the prod environment
  dqcore-cli validate --suite checks.yaml --env prod`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.SuiteFile, "suite", "s", "checks.yaml", "Check suite file")
	cmd.Flags().StringVarP(&opts.Environment, "env", "e", "", "Deployment environment selecting *_targets overrides")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

func runValidate(opts *ValidateOptions) error {
	logger := newLogger(opts.Verbose)

	registry := checks.NewRegistry(logger)
	suite, err := config.LoadSuite(opts.SuiteFile, opts.Environment, registry)
	if err != nil {
		return err
	}

	fmt.Printf("Suite is valid (environment: %s)\n", suite.Environment)
	for _, id := range suite.AssetIDs() {
		asset := suite.Assets[id]
		fmt.Printf("  %s (%s): %d checks\n", id, asset.Handle.SourceKind, len(asset.Checks))
		for _, def := range asset.Checks {
			grouped := ""
			if def.GroupBy != "" {
				grouped = fmt.Sprintf(", grouped by %s", def.GroupBy)
			}
			fmt.Printf("    - %s (%s%s)\n", def.Name, def.Kind, grouped)
		}
	}
	return nil
}
