package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"truckplanner/internal/controller"
	"truckplanner/internal/models"
	"truckplanner/internal/workflows"
)

var (
	submitWhse    string
	submitSheet   string
	submitSets    []string
	submitExports []string
)

var submitCmd = &cobra.Command{
	Use:   "submit FILE",
	Short: "Start a headless plan run on the Temporal worker",
	Long: `Start PlanRunWorkflow for a spreadsheet the worker can read. The run
uploads, previews, optimizes and exports without further input; use
"truckplanner status" to follow it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		kinds, err := parseExportKinds(submitExports)
		if err != nil {
			return err
		}
		// The store applies the same field parsing as the interactive flow.
		store := controller.NewConfigurationStore(e.defaults)
		if err := applySettings(store, submitWhse, submitSheet, submitSets); err != nil {
			return err
		}
		weights := store.Snapshot()
		if err := weights.Validate(); err != nil {
			return err
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		planning := store.Planning()

		starter, closeFn, err := dialTemporal(e.cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		id, err := workflows.StartPlanRun(commandContext(cmd), starter, e.cfg.TemporalTaskQueue, workflows.PlanRunInput{
			FilePath:               path,
			KeyPrefix:              e.defaults.Planning.KeyPrefix,
			SheetName:              planning.SheetName,
			PlanningWhse:           planning.PlanningWhse,
			Weights:                weights,
			Exports:                kinds,
			UploadTimeoutSeconds:   int(e.cfg.UploadTimeout.Seconds()),
			OptimizeTimeoutSeconds: int(e.cfg.OptimizeTimeout.Seconds()),
			ExportTimeoutSeconds:   int(e.cfg.ExportTimeout.Seconds()),
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{"workflow_id": id})
		}
		printSuccess(out, "Started plan run "+id)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status WORKFLOW_ID",
	Short: "Show the progress of a headless plan run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		starter, closeFn, err := dialTemporal(e.cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		st, err := workflows.QueryPlanRun(commandContext(cmd), starter, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, st)
		}
		printStatus(out, controller.Status{Phase: controller.Phase(st.Phase), Message: st.Message})
		printLabelValue(out, "Phases", strings.Join(st.History, " → "))
		if st.StorageKey != "" {
			printLabelValue(out, "Storage key", st.StorageKey)
		}
		if len(st.Missing) > 0 {
			printLabelValue(out, "Missing", strings.Join(st.Missing, ", "))
		}
		printLabelValue(out, "Trucks", strconv.Itoa(st.TruckCount))
		for _, f := range st.Exports {
			printLabelValue(out, string(f.Kind), fmt.Sprintf("%s (%d bytes)", f.Path, f.Bytes))
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitWhse, "whse", "", "Planning warehouse code")
	submitCmd.Flags().StringVar(&submitSheet, "sheet", "", "Worksheet name to read")
	submitCmd.Flags().StringArrayVar(&submitSets, "set", nil, "Set a planning field, e.g. --set texas_max=53000 (repeatable)")
	submitCmd.Flags().StringSliceVar(&submitExports, "export", []string{string(models.ExportStandard)}, "Export kinds to download: standard, dh-load-list")
}
