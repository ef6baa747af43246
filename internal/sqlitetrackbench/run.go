package sqlitetrackbench

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-sqlite3"
	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/sqlitedrv"
	"github.com/nsqlite/sqlitetrack/internal/util/numutil"
	"github.com/nsqlite/sqlitetrack/internal/version"
)

// benchmarkResult stores the outcome of a benchmark.
type benchmarkResult struct {
	Name        string
	Duration    time.Duration
	TotalReads  uint64
	TotalWrites uint64
	// Statements describes the statements a connection holds after the
	// benchmark, when the driver tracks them.
	Statements string
}

// statementCounter reads the tracked and cached statement counts of a
// connection.
type statementCounter func() (tracked, cached int, err error)

// Run executes benchmarks for plain mattn/go-sqlite3 and for the tracked
// driver and prints the results.
func Run(ctx context.Context) error {
	libVersion, _, _ := sqlite3.Version()
	fmt.Println(version.BenchVersion(libVersion))

	logger := log.NewLogger(os.Stderr)

	tmpDir, err := os.MkdirTemp("", "sqlitetrackbench_*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	mattnDb, err := createMattnDriver(tmpDir, os.Stdout)
	if err != nil {
		return fmt.Errorf("error opening mattn/go-sqlite3 db: %w", err)
	}
	defer mattnDb.Close()

	trackedDb, err := createTrackedDriver(tmpDir, os.Stdout, logger)
	if err != nil {
		return fmt.Errorf("error opening sqlitetrack db: %w", err)
	}
	defer trackedDb.Close()

	fmt.Println("\n--- Benchmarks for mattn/go-sqlite3 ---")
	mattnResults, err := runBenchmark(mattnDb, getMattnConfig(), nil)
	if err != nil {
		return fmt.Errorf("error benchmarking mattn/go-sqlite3: %w", err)
	}
	printResults(os.Stdout, mattnResults)

	fmt.Println("\n--- Benchmarks for sqlitetrack ---")
	counts := func() (int, int, error) { return statementCounts(ctx, trackedDb) }
	trackedResults, err := runBenchmark(trackedDb, getTrackedConfig(), counts)
	if err != nil {
		return fmt.Errorf("error benchmarking sqlitetrack: %w", err)
	}
	printResults(os.Stdout, trackedResults)

	logger.DebugNs(log.NsBenchmark, "benchmarks finished", log.KV{"dir": tmpDir})
	return nil
}

func printResults(out io.Writer, results []benchmarkResult) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	tw.AppendHeader(table.Row{"Name", "Reads", "Writes", "Statements", "Duration"})

	for _, r := range results {
		statements := r.Statements
		if statements == "" {
			statements = "-"
		}
		tw.AppendRow(table.Row{
			r.Name,
			numutil.IntWithCommas(r.TotalReads),
			numutil.IntWithCommas(r.TotalWrites),
			statements,
			r.Duration.Round(time.Millisecond),
		})
	}

	fmt.Fprintln(out, tw.Render())
}

// runBenchmark executes all benchmarks, and returns results. counts, when
// set, fills the statements column of each result.
//
// It recreates the schema before each benchmark.
func runBenchmark(
	db *sql.DB, cfg benchmarksConfig, counts statementCounter,
) ([]benchmarkResult, error) {
	benchs := []func(*sql.DB, benchmarksConfig) (benchmarkResult, error){
		runBenchmarkSimple,
		runBenchmarkCached,
		runBenchmarkLarge,
	}

	var results []benchmarkResult

	for _, bench := range benchs {
		if err := recreateSchema(db); err != nil {
			return nil, err
		}

		res, err := bench(db, cfg)
		if err != nil {
			return nil, err
		}
		if counts != nil {
			tracked, cached, err := counts()
			if err != nil {
				return nil, fmt.Errorf("error reading statement counts: %w", err)
			}
			res.Statements = fmt.Sprintf(
				"%s tracked, %s cached",
				numutil.IntWithCommas(tracked), numutil.IntWithCommas(cached),
			)
		}
		results = append(results, res)
	}

	return results, nil
}

// statementCounts returns the tracked and cached statement counts of one
// connection of the pool.
func statementCounts(ctx context.Context, db *sql.DB) (int, int, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	var tracked, cached int
	err = conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*sqlitedrv.Conn)
		if !ok {
			return errors.New("not a sqlitetrack connection")
		}
		tracked = c.RawConn().StatementCount()
		cached = c.RawConn().CachedStatementCount()
		return nil
	})

	return tracked, cached, err
}
