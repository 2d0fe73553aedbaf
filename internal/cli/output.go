package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/okian/filmport/internal/app"
)

// printMigrateReport writes one line per table and a run summary.
func printMigrateReport(w io.Writer, report *app.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSTATUS\tREAD\tINSERTED\tSKIPPED\tBATCHES\tELAPSED")
	for _, t := range report.Tables {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			t.Table, t.Status, t.Records, t.Inserted, t.Skipped, t.Batches, t.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()

	state := "rolled back"
	if report.Committed {
		state = "committed"
	}
	fmt.Fprintf(w, "transaction %s in %s\n", state, report.Duration.Round(time.Millisecond))
	for _, t := range report.Tables {
		if t.Err != nil {
			fmt.Fprintf(w, "  %s: %v\n", t.Table, t.Err)
		}
	}
}

// printVerifyReport writes one verdict line per table followed by its failures.
func printVerifyReport(w io.Writer, report *app.VerifyReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSOURCE\tDESTINATION\tVERDICT")
	for _, t := range report.Tables {
		verdict := "ok"
		if !t.OK() {
			verdict = fmt.Sprintf("%d failure(s)", len(t.Failures))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.Table, t.SourceRows, t.DestinationRows, verdict)
	}
	_ = tw.Flush()

	for _, t := range report.Tables {
		for _, f := range t.Failures {
			fmt.Fprintf(w, "  %s: %v\n", t.Table, f)
		}
	}
}
