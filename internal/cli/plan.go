package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/danieljhkim/scaffold/internal/engine"
	"github.com/danieljhkim/scaffold/internal/planner"
	"github.com/spf13/cobra"
)

var (
	planDigestOnly  bool
	planMetricsFile string
)

var planCmd = &cobra.Command{
	Use:   "plan [selection]",
	Short: "Resolve a module selection into an ordered plan",
	Long: `Resolve the modules listed in a selection file (default scaffold.yaml) into
one ordered, conflict-free plan.

The plan is deterministic: the same selection and modules always produce the
same plan and digest. Fatal conflicts abort with a typed error and no plan.`,
	Example: `  scaffold plan
  scaffold plan stacks/saas.yaml --json
  scaffold plan --digest --metrics-file plan.prom`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		req := &engine.PlanRequest{SelectionPath: engine.DefaultSelectionFile}
		if len(args) > 0 {
			req.SelectionPath = args[0]
		}

		result, err := eng.Plan(context.Background(), req)
		if err != nil {
			return err
		}

		if planMetricsFile != "" {
			if err := eng.Metrics().WriteFile(planMetricsFile); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		switch {
		case planDigestOnly:
			_, err := fmt.Fprintln(out, result.Digest)
			return err
		case jsonOutput:
			data, err := result.Plan.Marshal()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}

		printPlan(newPrinter(cmd), result)
		return nil
	},
}

func printPlan(p *printer, result *engine.PlanResult) {
	plan := result.Plan
	p.Section("Plan")
	p.LabelValue("Modules", strings.Join(result.Modules, ", "))
	p.LabelValue("Actions", fmt.Sprintf("%d (from %d flattened)", len(plan.Actions), result.Flattened))
	p.LabelValue("Digest", result.Digest)
	p.Info("")

	if len(plan.Actions) == 0 {
		p.EmptyState("Nothing to do")
	} else {
		rows := make([][]string, 0, len(plan.Actions))
		for i, a := range plan.Actions {
			rows = append(rows, []string{
				fmt.Sprintf("%d", i+1),
				string(a.Type),
				actionTarget(a),
				strings.Join(a.Contributors, ","),
				string(a.Strategy),
			})
		}
		p.Table([]string{"#", "TYPE", "TARGET", "MODULES", "STRATEGY"}, rows)
	}

	if plan.HasWarnings() {
		p.Section("Warnings")
		for _, w := range plan.Warnings {
			p.Warning(w.String())
		}
	}
}

func actionTarget(a planner.ResolvedAction) string {
	if a.Type.HasPath() {
		return a.Path
	}
	switch {
	case a.Key != "":
		return a.Key
	case a.Command != "":
		return a.Command
	default:
		return strings.Join(a.Packages, " ")
	}
}

func init() {
	planCmd.Flags().BoolVar(&planDigestOnly, "digest", false, "Print only the plan digest")
	planCmd.Flags().StringVar(&planMetricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
}
