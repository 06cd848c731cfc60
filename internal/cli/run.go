package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"truckplanner/internal/controller"
	"truckplanner/internal/models"
	"truckplanner/internal/results"
)

var (
	runWhse       string
	runSheet      string
	runSets       []string
	runExports    []string
	runWorkbook   string
	runNoOptimize bool
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Upload, preview, optimize and export in one go",
	Long: `Run the whole planning sequence for one spreadsheet: presign and upload,
preview, optimize with the current weight configuration, print the results and
save any requested exports.`,
	Example: `  truckplanner run orders.xlsx --whse ZAC --set texas_max=53000 --export standard --export dh-load-list`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		kinds, err := parseExportKinds(runExports)
		if err != nil {
			return err
		}
		c := e.newController()
		if err := applySettings(c.Config(), runWhse, runSheet, runSets); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := commandContext(cmd)

		if err := selectAndPreview(ctx, c, args[0], out); err != nil {
			return err
		}

		if !runNoOptimize {
			if !c.CanOptimize() {
				st := c.State()
				if st.Preview != nil && len(st.Preview.MissingRequiredColumns) > 0 && !jsonOutput {
					printWarning(out, "Optimize disabled, missing columns: "+strings.Join(st.Preview.MissingRequiredColumns, ", "))
				}
			} else {
				if !jsonOutput {
					printStatus(out, controller.Status{Phase: controller.PhaseOptimizing, Message: "Optimizing..."})
				}
				b, err := c.Optimize(ctx)
				if err != nil {
					return stepFailed(c, err)
				}
				if !jsonOutput {
					printStatus(out, c.Status())
					fmt.Fprintln(out)
					if err := results.Render(out, b); err != nil {
						return err
					}
				}
				if runWorkbook != "" {
					if err := results.WriteWorkbook(b, runWorkbook); err != nil {
						return err
					}
					if !jsonOutput {
						printSuccess(out, "Saved results snapshot to "+runWorkbook)
					}
				}
			}
		}

		for _, k := range kinds {
			f, err := c.Export(ctx, k)
			if err != nil {
				return stepFailed(c, err)
			}
			if !jsonOutput {
				printSuccess(out, fmt.Sprintf("%s -> %s (%s)", c.Status().Message, f.Path, strings.Join(f.Sheets, ", ")))
			}
		}

		if jsonOutput {
			return outputJSON(out, c.State())
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Upload a spreadsheet and show its preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		c := e.newController()
		if runSheet != "" {
			if err := c.Config().SetField(controller.FieldSheetName, runSheet); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		ctx := commandContext(cmd)
		if err := selectAndPreview(ctx, c, args[0], out); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(out, c.State())
		}
		p := c.State().Preview
		if len(p.Sample) > 0 {
			fmt.Fprintln(out)
			rows := make([][]string, 0, len(p.Sample))
			for _, s := range p.Sample {
				row := make([]string, len(p.Headers))
				for i, h := range p.Headers {
					if v, ok := s[h]; ok && v != nil {
						row[i] = fmt.Sprint(v)
					}
				}
				rows = append(rows, row)
			}
			return results.WriteTable(out, p.Headers, rows)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runWhse, "whse", "", "Planning warehouse code")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "Worksheet name to read")
	runCmd.Flags().StringArrayVar(&runSets, "set", nil, "Set a planning field, e.g. --set texas_max=53000 (repeatable)")
	runCmd.Flags().StringSliceVar(&runExports, "export", nil, "Export kinds to download: standard, dh-load-list")
	runCmd.Flags().StringVar(&runWorkbook, "xlsx", "", "Also save the displayed tables to this workbook")
	runCmd.Flags().BoolVar(&runNoOptimize, "no-optimize", false, "Stop after preview (exports still run)")

	previewCmd.Flags().StringVar(&runSheet, "sheet", "", "Worksheet name to read")
}

func selectAndPreview(ctx context.Context, c *controller.Controller, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	c.SelectFile(filepath.Base(path), "", data)
	if !jsonOutput {
		printStatus(out, controller.Status{Phase: controller.PhasePresigning, Message: "Uploading " + filepath.Base(path) + "..."})
	}
	p, err := c.UploadAndPreview(ctx)
	if err != nil {
		return stepFailed(c, err)
	}
	if !jsonOutput {
		printStatus(out, c.Status())
		printLabelValue(out, "Storage key", c.State().Session.StorageKey)
		printLabelValue(out, "Rows", strconv.Itoa(p.RowCount))
		printLabelValue(out, "Headers", strings.Join(p.Headers, ", "))
		if len(p.MissingRequiredColumns) > 0 {
			printLabelValue(out, "Missing", strings.Join(p.MissingRequiredColumns, ", "))
		}
	}
	return nil
}

func applySettings(store *controller.ConfigurationStore, whse, sheet string, sets []string) error {
	if whse != "" {
		if err := store.SetField(controller.FieldPlanningWhse, whse); err != nil {
			return err
		}
	}
	if sheet != "" {
		if err := store.SetField(controller.FieldSheetName, sheet); err != nil {
			return err
		}
	}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("--set %q: expected field=value", s)
		}
		if err := store.SetField(strings.TrimSpace(name), value); err != nil {
			return err
		}
	}
	return nil
}

func parseExportKinds(in []string) ([]models.ExportKind, error) {
	out := make([]models.ExportKind, 0, len(in))
	for _, s := range in {
		k, ok := models.ParseExportKind(strings.TrimSpace(s))
		if !ok {
			return nil, fmt.Errorf("unknown export kind %q (want standard or dh-load-list)", s)
		}
		out = append(out, k)
	}
	return out, nil
}
