package repl

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/styled"
	"github.com/nsqlite/sqlitetrack/internal/trackdb"
)

func cmdQuery(r *Repl, input string) {
	res, err := r.conn.Query(input)
	if err != nil {
		r.stats.IncFailed()
		r.printError(err)
		return
	}
	r.stats.Inc(res.Type)

	tw := styled.NewTableWriter()

	switch res.Type {
	case trackdb.StatementTypeBegin:
		r.inTx = true
		tw.AppendHeader(table.Row{"OK"})
		tw.AppendRow(table.Row{"Transaction started"})

	case trackdb.StatementTypeCommit:
		r.inTx = false
		tw.AppendHeader(table.Row{"OK"})
		tw.AppendRow(table.Row{"Transaction committed"})

	case trackdb.StatementTypeRollback:
		r.inTx = false
		tw.AppendHeader(table.Row{"OK"})
		tw.AppendRow(table.Row{"Transaction rolled back"})

	case trackdb.StatementTypeWrite:
		tw.AppendHeader(table.Row{"-", "Rows Affected", "Last Insert ID"})
		tw.AppendRow(table.Row{"OK", res.RowsAffected, res.LastInsertID})

	default:
		if len(res.Columns) == 0 {
			tw.AppendHeader(table.Row{"OK"})
			tw.AppendRow(table.Row{"OK"})
			break
		}

		header := table.Row{}
		for _, col := range res.Columns {
			header = append(header, col)
		}
		tw.AppendHeader(header)

		for _, values := range res.Rows {
			row := table.Row{}
			for _, value := range values {
				row = append(row, formatValue(value))
			}
			tw.AppendRow(row)
		}
	}

	fmt.Fprintln(r.out, tw.Render())
}

// formatValue returns the text shown in a result cell.
func formatValue(value any) any {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%X'", v)
	default:
		return v
	}
}
