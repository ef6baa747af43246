package repl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/styled"
	"github.com/nsqlite/sqlitetrack/internal/trackdb"
	"github.com/schollz/progressbar/v3"
)

// pageBar reports the pages copied by a backup or a restore on a
// progress bar created on the first report.
type pageBar struct {
	out         io.Writer
	description string
	bar         *progressbar.ProgressBar
}

func (p *pageBar) Progress(remaining, total int) {
	if total <= 0 {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
		)
	}
	_ = p.bar.Set(total - remaining)
}

func (p *pageBar) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}

func (r *Repl) retryPolicy() trackdb.RetryPolicy {
	policy := r.conf.RetryPolicy()
	policy.OnBusy = trackdb.BusyFunc(func(retry int) bool {
		styled.DimmedColor().Fprintf(r.out, "Database is busy, retry %d of %d\n", retry, policy.MaxRetries)
		return true
	})
	return policy
}

// backupArgs splits the "[schema] file" argument of .backup and .restore.
func backupArgs(arg string) (schema, file string, err error) {
	fields := strings.Fields(arg)
	switch len(fields) {
	case 1:
		return trackdb.MainSchema, fields[0], nil
	case 2:
		return fields[0], fields[1], nil
	default:
		return "", "", errors.New("missing file, usage: [schema] file")
	}
}

func cmdBackup(r *Repl, arg string) {
	schema, file, err := backupArgs(arg)
	if err != nil {
		r.printError(fmt.Errorf(".backup: %w", err))
		return
	}

	bar := &pageBar{out: r.out, description: "Backup"}
	err = r.conn.BackupDatabase(schema, file, bar, r.retryPolicy())
	bar.finish()
	if err != nil {
		r.printBackupError(err)
		return
	}

	fmt.Fprintf(r.out, "Database %s copied into %s\n", schema, file)
}

func cmdRestore(r *Repl, arg string) {
	schema, file, err := backupArgs(arg)
	if err != nil {
		r.printError(fmt.Errorf(".restore: %w", err))
		return
	}

	bar := &pageBar{out: r.out, description: "Restore"}
	err = r.conn.RestoreDatabase(schema, file, bar, r.retryPolicy())
	bar.finish()
	if err != nil {
		r.printBackupError(err)
		return
	}

	fmt.Fprintf(r.out, "Database %s restored from %s\n", schema, file)
}

func (r *Repl) printBackupError(err error) {
	if retries, ok := trackdb.IsRetriesExhausted(err); ok {
		r.printError(fmt.Errorf("database stayed busy after %d retries: %w", retries, err))
		return
	}
	r.printError(err)
}
