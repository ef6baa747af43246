package sqlitetrackbench

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrackbench/benchbar"
)

type benchmarkCachedConfig struct {
	insertXUsers       int
	distinctStatements int
	lookupYUsers       int
	goroutines         int
}

// runConcurrently calls fn for every i in [0, n) with at most goroutines
// calls in flight and returns the first error.
func runConcurrently(n, goroutines int, fn func(i int) error) error {
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, max(goroutines, 1))
	errChan := make(chan error, n)

	for i := range n {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				wg.Done()
				<-sem
			}()
			if err := fn(i); err != nil {
				errChan <- err
			}
		}()
	}

	wg.Wait()
	close(errChan)
	return <-errChan
}

// runBenchmarkCached inserts X users with one-shot statements spread over a
// set of distinct SQL texts, then looks Y users up by id through a single
// prepared statement. While the set fits in the statement cache the
// one-shot inserts skip compilation.
func runBenchmarkCached(
	db *sql.DB, fullConfig benchmarksConfig,
) (benchmarkResult, error) {
	conf := fullConfig.benchmarkCachedConfig
	start := time.Now()
	var totalReads, totalWrites atomic.Uint64

	inserts := make([]string, max(conf.distinctStatements, 1))
	for i := range inserts {
		inserts[i] = fmt.Sprintf(
			"INSERT INTO users (created, email, active) VALUES (?, ?, ?) -- %d", i,
		)
	}

	bar := benchbar.NewBar(
		fullConfig.barOutput,
		fmt.Sprintf("Inserting %d users with %d statements", conf.insertXUsers, len(inserts)),
		conf.insertXUsers,
	)
	err := runConcurrently(conf.insertXUsers, conf.goroutines, func(i int) error {
		res, err := db.Exec(
			inserts[i%len(inserts)],
			time.Now().Unix(), uuid.NewString()+"@example.com", true,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		bar.Inc()
		totalWrites.Add(uint64(affected))
		return nil
	})
	if err != nil {
		return benchmarkResult{}, fmt.Errorf("error when inserting: %w", err)
	}
	bar.Finish()

	lookup, err := db.Prepare("SELECT id, email FROM users WHERE id = ?")
	if err != nil {
		return benchmarkResult{}, err
	}
	defer func() { _ = lookup.Close() }()

	bar = benchbar.NewBar(
		fullConfig.barOutput,
		fmt.Sprintf("Looking up %d users", conf.lookupYUsers),
		conf.lookupYUsers,
	)
	err = runConcurrently(conf.lookupYUsers, conf.goroutines, func(i int) error {
		var id int64
		var email string
		if err := lookup.QueryRow(i%conf.insertXUsers + 1).Scan(&id, &email); err != nil {
			return err
		}

		bar.Inc()
		totalReads.Add(1)
		return nil
	})
	if err != nil {
		return benchmarkResult{}, fmt.Errorf("error when looking up: %w", err)
	}
	bar.Finish()

	return benchmarkResult{
		Name:        "Cached",
		Duration:    time.Since(start),
		TotalReads:  totalReads.Load(),
		TotalWrites: totalWrites.Load(),
	}, nil
}
