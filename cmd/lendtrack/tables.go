// ABOUTME: Table printers for assets, identities, loans and activity
// ABOUTME: Uses tabwriter with colored headings in the admin CLI style

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/lendtrack/internal/lending"
	"github.com/2389/lendtrack/internal/store"
)

const timeLayout = "Jan 02 15:04"

func heading(out io.Writer, title string) {
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(out)
	cyan.Fprintf(out, "  %s\n", title)
	cyan.Fprintf(out, "  %s\n", strings.Repeat("-", len(title)))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func localTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func printAssets(out io.Writer, assets []*store.Asset) {
	heading(out, "Assets")
	if len(assets) == 0 {
		fmt.Fprintln(out, "  (no assets)")
		fmt.Fprintln(out)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TAG\tMAKE\tMODEL\tSTATUS\tUPDATED")
	fmt.Fprintln(w, "  ---\t----\t-----\t------\t-------")
	for _, a := range assets {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			a.Tag, truncate(a.Make, 20), truncate(a.Model, 24), a.Status, localTime(a.UpdatedAt))
	}
	w.Flush()
	fmt.Fprintln(out)
}

func printIdentities(out io.Writer, people []*store.Identity) {
	heading(out, "Identities")
	if len(people) == 0 {
		fmt.Fprintln(out, "  (no identities)")
		fmt.Fprintln(out)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tROLE\tCREATED")
	fmt.Fprintln(w, "  --\t----\t----\t-------")
	for _, p := range people {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", p.ID, truncate(p.DisplayName, 32), p.Role, localTime(p.CreatedAt))
	}
	w.Flush()
	fmt.Fprintln(out)
}

// printLoans lists loans with open overdue ones flagged in red.
func printLoans(out io.Writer, sess *lending.Session, title string, loans []*store.Loan) {
	heading(out, title)
	if len(loans) == 0 {
		fmt.Fprintln(out, "  (no loans)")
		fmt.Fprintln(out)
		return
	}

	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	// Colored cells go last so escape codes don't skew column widths.
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  LOAN\tASSET\tBORROWER\tISSUER\tISSUED\tDUE\tRETURNED\tSTATE")
	fmt.Fprintln(w, "  ----\t-----\t--------\t------\t------\t---\t--------\t-----")
	for _, l := range loans {
		returned := "-"
		state := "open"
		switch {
		case l.ReturnedAt != nil:
			returned = localTime(*l.ReturnedAt)
			state = green("✓ returned")
		case sess.IsOverdue(l):
			state = red("overdue")
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.AssetTag, l.BorrowerID, l.IssuerID, localTime(l.IssuedAt), localTime(l.DueAt), returned, state)
	}
	w.Flush()
	fmt.Fprintln(out)
}

func printActivity(out io.Writer, records []*store.ActivityRecord) {
	heading(out, "Activity")
	if len(records) == 0 {
		fmt.Fprintln(out, "  (no activity)")
		fmt.Fprintln(out)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  WHEN\tACTOR\tSESSION\tDESCRIPTION")
	fmt.Fprintln(w, "  ----\t-----\t-------\t-----------")
	for _, r := range records {
		session := truncate(r.SessionID, 8)
		if session == "" {
			session = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", localTime(r.Timestamp), r.ActorID, session, r.Description)
	}
	w.Flush()
	fmt.Fprintln(out)
}
