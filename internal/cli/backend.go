package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the planning backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		h, err := e.client.Health(commandContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, h)
		}
		printSuccess(out, fmt.Sprintf("Backend %s is %s", e.client.BaseURL(), h.Status))
		printLabelValue(out, "Env", h.Env)
		return nil
	},
}

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Manage customers excluded from multi-stop routing",
}

var customersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List no-multi-stop customers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		cs, err := e.client.NoMultiStopCustomers(commandContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{"customers": cs})
		}
		for _, c := range cs {
			fmt.Fprintln(out, c)
		}
		return nil
	},
}

var customersSetCmd = &cobra.Command{
	Use:   "set NAME...",
	Short: "Replace the no-multi-stop customer list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		var names []string
		for _, a := range args {
			for _, n := range strings.Split(a, ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
		}
		n, err := e.client.SetNoMultiStopCustomers(commandContext(cmd), names)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{"ok": true, "count": n})
		}
		printSuccess(out, fmt.Sprintf("Saved %d customers", n))
		return nil
	},
}

func init() {
	customersCmd.AddCommand(customersListCmd)
	customersCmd.AddCommand(customersSetCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
