package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapingest/internal/ipeds"
	"github.com/leapstack-labs/leapingest/internal/store"
)

type statsRow struct {
	Name  string
	Stats store.RunStats
}

func renderStats(w io.Writer, rows []statsRow, total *store.RunStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Read", "Imported", "Skipped", "Failed", "Deleted"})

	for _, r := range rows {
		t.AppendRow(table.Row{r.Name, r.Stats.Read, r.Stats.Imported, r.Stats.Skipped, r.Stats.Failed, r.Stats.Deleted})
	}
	if total != nil {
		t.AppendFooter(table.Row{"Total", total.Read, total.Imported, total.Skipped, total.Failed, total.Deleted})
	}
	t.Render()
}

func renderIPEDSSummary(w io.Writer, summary *ipeds.Summary) {
	rows := make([]statsRow, 0, len(summary.Files))
	for _, f := range summary.Files {
		rows = append(rows, statsRow{Name: f.File.Name, Stats: f.Stats})
	}
	renderStats(w, rows, &summary.Total)
}

func renderRuns(w io.Writer, runs []*store.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No import runs recorded")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Dataset", "Status", "Started", "Duration", "Read", "Imported", "Skipped", "Failed", "Deleted", "Error"})

	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.Dataset,
			string(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			r.Stats.Read,
			r.Stats.Imported,
			r.Stats.Skipped,
			r.Stats.Failed,
			r.Stats.Deleted,
			truncate(r.Error, 60),
		})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
