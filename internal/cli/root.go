package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput   bool
	apiURL       string
	downloadDir  string
	defaultsFile string

	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

var rootCmd = &cobra.Command{
	Use:     "truckplanner",
	Version: "dev",
	Short:   "Upload, preview, optimize and export truck load plans",
	Long: `truckplanner drives the load-planning backend: it uploads an order-line
spreadsheet to blob storage, previews it, runs the truck optimizer with your
weight thresholds and downloads the generated workbooks.`,
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

// customHelpFunc colors group titles.
func customHelpFunc(cmd *cobra.Command, args []string) {
	var help strings.Builder
	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	}
	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n\n", cmd.UseLine())

	for _, group := range cmd.Groups() {
		help.WriteString(groupTitleColor.Sprint(group.Title))
		help.WriteString("\n")
		for _, c := range cmd.Commands() {
			if c.GroupID == group.ID && !c.Hidden {
				fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	hasSub := false
	for _, c := range cmd.Commands() {
		if c.GroupID == "" && !c.Hidden {
			if !hasSub {
				help.WriteString(sectionTitleColor.Sprint("Commands:"))
				help.WriteString("\n")
				hasSub = true
			}
			fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
		}
	}
	if hasSub {
		help.WriteString("\n")
	}

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

func init() {
	rootCmd.SetHelpFunc(customHelpFunc)
	rootCmd.InitDefaultHelpFlag()

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Planning API base URL (overrides TRUCKPLANNER_API_URL)")
	rootCmd.PersistentFlags().StringVar(&downloadDir, "download-dir", "", "Directory for exported workbooks (overrides TRUCKPLANNER_DOWNLOAD_DIR)")
	rootCmd.PersistentFlags().StringVar(&defaultsFile, "defaults", "", "Planning defaults TOML file (overrides TRUCKPLANNER_DEFAULTS_FILE)")

	rootCmd.AddGroup(&cobra.Group{ID: "planning", Title: "Planning:"})
	rootCmd.AddGroup(&cobra.Group{ID: "headless", Title: "Headless Runs:"})
	rootCmd.AddGroup(&cobra.Group{ID: "backend", Title: "Backend:"})
	rootCmd.AddGroup(&cobra.Group{ID: "cli-tooling", Title: "CLI & Tooling:"})

	versionCmd := &cobra.Command{
		Use:     "version",
		Short:   "Print the truckplanner CLI version",
		Args:    cobra.NoArgs,
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	helpCmd := &cobra.Command{
		Use:     "help [command]",
		Short:   "Help about any command",
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Root().Help()
		},
	}
	rootCmd.SetHelpCommand(helpCmd)

	runCmd.GroupID = "planning"
	previewCmd.GroupID = "planning"
	configCmd.GroupID = "planning"
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(configCmd)

	submitCmd.GroupID = "headless"
	statusCmd.GroupID = "headless"
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)

	healthCmd.GroupID = "backend"
	customersCmd.GroupID = "backend"
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(customersCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
