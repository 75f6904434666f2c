package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/idena-watch/flipwatch/pkg/scan"
)

const explorerAddressURL = "https://scan.idena.io/address/"

// RenderEpochText prints one epoch report as a console table followed by an
// offender breakdown, mirroring the report's own ordering.
func RenderEpochText(w io.Writer, report *scan.EpochReport) {
	fmt.Fprintf(w, "Epoch %d\n", report.Epoch)
	fmt.Fprintf(w, "%-42s  %s\n", "address", "wrongWordsCount")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	one, multi := 0, 0
	for _, e := range report.Entries {
		marker := ""
		if e.RepeatOffender {
			marker = "  **>1**"
			multi++
		} else if e.Count == 1 {
			one++
		}
		fmt.Fprintf(w, "%-42s  %d%s\n", e.Address, e.Count, marker)
	}

	fmt.Fprintf(w, "\nOne reported flip: %d\n", one)
	fmt.Fprintf(w, "Multiple reported flips: %d\n", multi)
	if multi > 0 {
		fmt.Fprintln(w, "Addresses with 2+ reported flips:")
		for _, e := range report.Entries {
			if e.RepeatOffender {
				fmt.Fprintf(w, "  - %s (%d flips) %s%s\n", e.Address, e.Count, explorerAddressURL, e.Address)
			}
		}
	}
	if len(report.UnresolvedFlips) > 0 {
		fmt.Fprintf(w, "Unresolved flips (excluded from counts): %d\n", len(report.UnresolvedFlips))
		for _, cid := range report.UnresolvedFlips {
			fmt.Fprintf(w, "  - %s\n", cid)
		}
	}
}

// RenderWindowText prints every epoch report of a window, the skipped
// epochs, and the explicit cross-window totals.
func RenderWindowText(w io.Writer, report *scan.WindowReport) {
	fmt.Fprintf(w, "Epoch window %d-%d\n\n", report.StartEpoch, report.EndEpoch)
	for i := range report.Reports {
		RenderEpochText(w, &report.Reports[i])
		fmt.Fprintln(w, strings.Repeat("=", 60))
	}
	if len(report.SkippedEpochs) > 0 {
		fmt.Fprintf(w, "Skipped epochs (listing failed): %v\n", report.SkippedEpochs)
	}
	if len(report.Totals) > 0 {
		fmt.Fprintln(w, "\nTotals across window:")
		fmt.Fprintf(w, "%-42s  %s\n", "address", "wrongWordsCount")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, e := range report.Totals {
			marker := ""
			if e.RepeatOffender {
				marker = "  **>1**"
			}
			fmt.Fprintf(w, "%-42s  %d%s\n", e.Address, e.Count, marker)
		}
	}
}
