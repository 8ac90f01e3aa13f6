package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput  bool
	modulesDir  string
	compiledDir string
	workers     int
	logLevel    string

	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

// rootCmd is the root command for scaffold.
var rootCmd = &cobra.Command{
	Use:     "scaffold",
	Version: "dev",
	Short:   "Blueprint resolution and conflict-merge engine",
	Long: `scaffold turns an ordered selection of modules into one deterministic plan.

Each module's blueprint is flattened into actions, actions touching the same
path are grouped and resolved by their declared strategy, and structured files
(package.json, YAML, TOML, .env, Dockerfile, TS modules, CSS) are merged.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// commandGroups lists the help sections in display order.
var commandGroups = []*cobra.Group{
	{ID: "planning", Title: "Planning:"},
	{ID: "module-maintenance", Title: "Module Maintenance:"},
	{ID: "cli-tooling", Title: "CLI & Tooling:"},
}

// customHelpFunc prints help with colored group titles and one section per
// command group.
func customHelpFunc(cmd *cobra.Command, args []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	fmt.Fprintf(&help, "\n  %s\n\n", cmd.UseLine())

	if cmd.Example != "" {
		help.WriteString(sectionTitleColor.Sprint("Examples:"))
		fmt.Fprintf(&help, "\n%s\n\n", cmd.Example)
	}

	width := nameWidth(cmd.Commands())
	for _, group := range cmd.Groups() {
		writeCommands(&help, groupTitleColor.Sprint(group.Title), cmd.Commands(), group.ID, width)
	}
	writeCommands(&help, sectionTitleColor.Sprint("Additional Commands:"), cmd.Commands(), "", width)

	if cmd.HasAvailableLocalFlags() || cmd.HasAvailablePersistentFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	fmt.Fprintf(&help, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())
	fmt.Fprint(cmd.OutOrStdout(), help.String())
}

// writeCommands writes the visible commands of one group; nothing is written
// for an empty group.
func writeCommands(help *strings.Builder, title string, cmds []*cobra.Command, groupID string, width int) {
	wrote := false
	for _, c := range cmds {
		if c.GroupID != groupID || c.Hidden {
			continue
		}
		if !wrote {
			help.WriteString(title)
			help.WriteString("\n")
			wrote = true
		}
		fmt.Fprintf(help, "  %-*s %s\n", width, c.Name(), c.Short)
	}
	if wrote {
		help.WriteString("\n")
	}
}

func nameWidth(cmds []*cobra.Command) int {
	width := 11
	for _, c := range cmds {
		if n := len(c.Name()); n > width {
			width = n
		}
	}
	return width
}

// completionCmd builds the completion command with one subcommand per shell.
func completionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "completion",
		Short:   "Generate the autocompletion script for the specified shell",
		GroupID: "cli-tooling",
		Long: `Generate the autocompletion script for scaffold for the specified shell.
See each sub-command's help for details on how to use the generated script.`,
	}
	shells := []struct {
		name string
		gen  func(w io.Writer) error
	}{
		{"bash", rootCmd.GenBashCompletion},
		{"zsh", rootCmd.GenZshCompletion},
		{"fish", func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) }},
		{"powershell", rootCmd.GenPowerShellCompletionWithDesc},
	}
	for _, shell := range shells {
		gen := shell.gen
		cmd.AddCommand(&cobra.Command{
			Use:                   shell.name,
			Short:                 "Generate the autocompletion script for " + shell.name,
			Args:                  cobra.NoArgs,
			DisableFlagsInUseLine: true,
			RunE: func(c *cobra.Command, args []string) error {
				return gen(c.OutOrStdout())
			},
		})
	}
	return cmd
}

func init() {
	rootCmd.SetHelpFunc(customHelpFunc)

	// Global flags override SCAFFOLD_* environment settings
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.StringVar(&modulesDir, "modules-dir", "", "Authorable module root (SCAFFOLD_MODULES_DIR)")
	flags.StringVar(&compiledDir, "compiled-dir", "", "Compiled module root (SCAFFOLD_COMPILED_DIR)")
	flags.IntVar(&workers, "workers", 0, "Concurrent module lookups (SCAFFOLD_LOCATOR_WORKERS)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (SCAFFOLD_LOG_LEVEL)")

	rootCmd.AddGroup(commandGroups...)

	rootCmd.SetHelpCommand(&cobra.Command{
		Use:     "help [command]",
		Short:   "Help about any command",
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			target, _, err := cmd.Root().Find(args)
			if err != nil || target == nil {
				target = cmd.Root()
			}
			_ = target.Help()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:     "version",
		Short:   "Print the scaffold CLI version",
		Args:    cobra.NoArgs,
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	})
	rootCmd.AddCommand(completionCmd())

	for groupID, cmds := range map[string][]*cobra.Command{
		"planning":           {planCmd, validateCmd},
		"module-maintenance": {modulesCmd, buildCmd, generateCmd},
	} {
		for _, c := range cmds {
			c.GroupID = groupID
			rootCmd.AddCommand(c)
		}
	}
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
