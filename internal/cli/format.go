package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"truckplanner/internal/controller"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	labelColor   = color.New(color.FgWhite, color.Bold)
)

func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", msg)
}

func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %s: ", label)
	fmt.Fprintln(w, value)
}

// printStatus shows the controller's status line colored by phase.
func printStatus(w io.Writer, st controller.Status) {
	switch st.Phase {
	case controller.PhaseError:
		_, _ = errorColor.Fprintf(w, "✗ %s\n", st.Message)
	case controller.PhaseComplete, controller.PhaseUploaded:
		printSuccess(w, st.Message)
	default:
		_, _ = infoColor.Fprintln(w, st.Message)
	}
}
