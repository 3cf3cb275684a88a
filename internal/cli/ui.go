package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	bold     = color.New(color.Bold).SprintFunc()
)

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, bold(title))
	fmt.Fprintln(w, "─────────────────────")
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func pct(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}
