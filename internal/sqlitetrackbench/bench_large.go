package sqlitetrackbench

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrackbench/benchbar"
)

type benchmarkLargeConfig struct {
	insertXUsers int
	insertYBytes int
	goroutines   int
}

// largePayload returns a random text of exactly size bytes.
func largePayload(size int) string {
	id := uuid.NewString()
	return strings.Repeat(id, size/len(id)+1)[:size]
}

// runBenchmarkLarge stores X users carrying Y bytes each, then reads every
// payload back by id and checks its size.
func runBenchmarkLarge(
	db *sql.DB, fullConfig benchmarksConfig,
) (benchmarkResult, error) {
	conf := fullConfig.benchmarkLargeConfig
	start := time.Now()
	var totalReads, totalWrites atomic.Uint64

	bar := benchbar.NewBar(
		fullConfig.barOutput,
		fmt.Sprintf("Inserting %d users of %d bytes", conf.insertXUsers, conf.insertYBytes),
		conf.insertXUsers,
	)
	err := runConcurrently(conf.insertXUsers, conf.goroutines, func(int) error {
		res, err := db.Exec(
			"INSERT INTO users (created, email, active) VALUES (?, ?, ?)",
			time.Now().Unix(), largePayload(conf.insertYBytes), true,
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

	read, err := db.Prepare("SELECT email FROM users WHERE id = ?")
	if err != nil {
		return benchmarkResult{}, err
	}
	defer func() { _ = read.Close() }()

	bar = benchbar.NewBar(
		fullConfig.barOutput,
		fmt.Sprintf("Reading %d payloads", conf.insertXUsers),
		conf.insertXUsers,
	)
	err = runConcurrently(conf.insertXUsers, conf.goroutines, func(i int) error {
		var payload string
		if err := read.QueryRow(i + 1).Scan(&payload); err != nil {
			return err
		}
		if len(payload) != conf.insertYBytes {
			return fmt.Errorf("user %d has %d bytes, want %d", i+1, len(payload), conf.insertYBytes)
		}

		bar.Inc()
		totalReads.Add(1)
		return nil
	})
	if err != nil {
		return benchmarkResult{}, fmt.Errorf("error when reading: %w", err)
	}
	bar.Finish()

	return benchmarkResult{
		Name:        "Large",
		Duration:    time.Since(start),
		TotalReads:  totalReads.Load(),
		TotalWrites: totalWrites.Load(),
	}, nil
}
