package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/scenario"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate suites and their fixtures",
	Long: `Validate suite files without a browser: structure, selectors, modals,
and every intercept's fixture, including JSON schema checks.

Examples:
  uispec validate burger.yaml
  uispec validate ./e2e/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	code := ExitSuccess
	for _, file := range files {
		suite, err := scenario.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			code = ExitParseError
			continue
		}
		set, err := runner.NewRunner(nil, nil).RuleSet(suite)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			if code == ExitSuccess {
				code = ExitConfigError
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d scenarios, %d intercepts)\n", file, len(suite.Scenarios), len(set.Rules()))
	}

	if code != ExitSuccess {
		return withExitCode(code, fmt.Errorf("validation failed"))
	}

	return nil
}
