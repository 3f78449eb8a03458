package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/uispec/packages/scenario"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List all scenarios in suite files",
	Long: `List all scenarios defined in .yaml suite files.

Examples:
  uispec list burger.yaml
  uispec list ./e2e/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	for _, file := range files {
		suite, err := scenario.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", file, suite.Name)
		for _, sc := range suite.Scenarios {
			line := "  - " + sc.Name
			switch {
			case sc.Only:
				line += " [only]"
			case sc.Skip != "":
				line += " [skip: " + sc.Skip + "]"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			if len(sc.Tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(sc.Tags, ", "))
			}
		}
	}

	return nil
}
