package cli

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"truckplanner/internal/controller"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective planning defaults",
	Long: `Print the planning defaults after applying the defaults file. The output
is valid TOML and can be saved as a starting defaults file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{
				"api_url":            e.cfg.APIBaseURL,
				"download_dir":       e.cfg.DownloadDir,
				"defaults_file":      e.cfg.DefaultsFile,
				"fields":             controller.NewConfigurationStore(e.defaults).Fields(),
				"multi_stop_enabled": controller.MultiStopEnabled,
			})
		}
		data, err := toml.Marshal(e.defaults)
		if err != nil {
			return fmt.Errorf("encode defaults: %w", err)
		}
		fmt.Fprintf(out, "# api_url = %q\n# download_dir = %q\n\n", e.cfg.APIBaseURL, e.cfg.DownloadDir)
		_, err = out.Write(data)
		return err
	},
}
