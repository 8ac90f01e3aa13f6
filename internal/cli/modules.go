package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/scaffold/internal/engine"
	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List discoverable modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		infos, err := eng.Modules(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), infos)
		}

		p := newPrinter(cmd)
		p.Section("Modules")
		if len(infos) == 0 {
			p.EmptyState("No modules found")
			return nil
		}
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{
				info.ID,
				info.Runtime,
				info.Category,
				fmt.Sprintf("%d", len(info.ActionTypes)),
				fmt.Sprintf("%d", len(info.Templates)),
			})
		}
		p.Table([]string{"ID", "RUNTIME", "CATEGORY", "ACTION TYPES", "TEMPLATES"}, rows)
		return nil
	},
}

var generateOutput string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the module catalog (modules.json)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Generate(context.Background(), &engine.GenerateRequest{Output: generateOutput})
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), result.Modules)
		}
		newPrinter(cmd).Success(fmt.Sprintf("Wrote %s to %s", Count(len(result.Modules), "module", "modules"), result.Path))
		return nil
	},
}

var (
	buildOutDir string
	buildDryRun bool
)

var buildCmd = &cobra.Command{
	Use:   "build [module-id...]",
	Short: "Compile authorable modules into the compiled module root",
	Long: `Compile authorable blueprints (Go or YAML) into blueprint.json and module.json,
and copy their templates into the compiled module root.

Generator blueprints are evaluated with their manifest default parameters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Build(context.Background(), &engine.BuildRequest{
			Modules: args,
			OutDir:  buildOutDir,
			DryRun:  buildDryRun,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), result)
		}

		p := newPrinter(cmd)
		if result.DryRun {
			p.Section("Dry Run")
		}
		items := make([]string, 0, len(result.Built))
		for _, b := range result.Built {
			rel, err := filepath.Rel(result.OutDir, b.Location)
			if err != nil {
				rel = b.Location
			}
			items = append(items, fmt.Sprintf("%s: %s, %s -> %s", b.ID,
				Count(b.Actions, "action", "actions"), Count(b.Templates, "template", "templates"), rel))
		}
		p.List(items, 1)
		if !result.DryRun {
			p.Success(fmt.Sprintf("Compiled %s into %s", Count(len(result.Built), "module", "modules"), result.OutDir))
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", engine.DefaultCatalogFile, "Catalog file to write")
	buildCmd.Flags().StringVar(&buildOutDir, "out", "", "Override the compiled module root")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "Evaluate blueprints without writing anything")
}
