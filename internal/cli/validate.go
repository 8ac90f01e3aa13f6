package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/danieljhkim/scaffold/internal/engine"
	"github.com/spf13/cobra"
)

var validateAll bool

var validateCmd = &cobra.Command{
	Use:   "validate [selection]",
	Short: "Check modules and a selection without planning",
	Long: `Run static checks over a selection (default scaffold.yaml) or, with --all,
over every discoverable module.

Checks cover module lookup, template references, condition syntax and
parameters, modifier registration, manifest dependencies and conflicts, and
FAIL strategies on shared paths.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		req := &engine.ValidateRequest{All: validateAll, SelectionPath: engine.DefaultSelectionFile}
		if len(args) > 0 {
			req.SelectionPath = args[0]
		}

		result, err := eng.Validate(context.Background(), req)
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := outputJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			p := newPrinter(cmd)
			p.Section("Validate")
			p.LabelValue("Modules", strings.Join(result.Modules, ", "))
			p.Info("")
			for _, issue := range result.Issues {
				p.Error(issue.String())
			}
			if result.OK() {
				p.Success(fmt.Sprintf("%s valid", Count(len(result.Modules), "module", "modules")))
			}
		}

		if !result.OK() {
			return fmt.Errorf("%w: %s", engine.ErrValidation, Count(len(result.Issues), "issue", "issues"))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateAll, "all", false, "Check every discoverable module with its defaults")
}
