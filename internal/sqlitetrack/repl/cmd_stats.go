package repl

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/styled"
	"github.com/nsqlite/sqlitetrack/internal/util/numutil"
)

const defaultStatsMinutes = 5

func cmdStats(r *Repl, arg string) {
	minutes := defaultStatsMinutes
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			r.printError(fmt.Errorf("invalid minutes %q, usage: .stats [minutes]", arg))
			return
		}
		minutes = n
	}

	totalChanges, err := r.conn.TotalChanges()
	if err != nil {
		r.printError(err)
		return
	}
	snap := r.stats.Snapshot(minutes)

	tw := styled.NewTableWriter()
	tw.AppendHeader(table.Row{"Minute (UTC)", "Reads", "Writes", "Begins", "Commits", "Rollbacks", "Failed"})

	rows := []table.Row{}
	for _, stat := range snap.Minutes {
		rows = append(rows, table.Row{
			stat.Minute.Format("2006-01-02 15:04"),
			numutil.IntWithCommas(stat.Read),
			numutil.IntWithCommas(stat.Write),
			numutil.IntWithCommas(stat.Begin),
			numutil.IntWithCommas(stat.Commit),
			numutil.IntWithCommas(stat.Rollback),
			numutil.IntWithCommas(stat.Failed),
		})
	}
	// Oldest first, like a log.
	for i := len(rows) - 1; i >= 0; i-- {
		tw.AppendRow(rows[i])
	}

	tw.AppendFooter(table.Row{
		"Total",
		numutil.IntWithCommas(snap.Total.Read),
		numutil.IntWithCommas(snap.Total.Write),
		numutil.IntWithCommas(snap.Total.Begin),
		numutil.IntWithCommas(snap.Total.Commit),
		numutil.IntWithCommas(snap.Total.Rollback),
		numutil.IntWithCommas(snap.Total.Failed),
	})

	fmt.Fprintln(r.out, tw.Render())
	dimmed := styled.DimmedColor()
	dimmed.Fprintf(r.out, "Showing the last %d minutes of stats\n", minutes)
	dimmed.Fprintf(r.out, "Connection: %s\n", r.conn.ID())
	dimmed.Fprintf(r.out, "Opened at: %s\n", r.conn.OpenedAt().UTC().Format(time.DateTime))
	dimmed.Fprintf(r.out, "Uptime: %s\n", snap.Uptime.Round(time.Second))
	dimmed.Fprintf(
		r.out, "Statements: %s tracked, %s cached, %s rows changed\n",
		numutil.IntWithCommas(r.conn.StatementCount()),
		numutil.IntWithCommas(r.conn.CachedStatementCount()),
		numutil.IntWithCommas(totalChanges),
	)
	fmt.Fprintln(r.out)
}
