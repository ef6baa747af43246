package sqlitetrackbench

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrackbench/benchbar"
)

type benchmarkSimpleConfig struct {
	insertXUsers     int
	insertGoroutines int
}

// runBenchmarkSimple inserts X users with random emails and then queries
// all of them in single query.
func runBenchmarkSimple(
	db *sql.DB, fullConfig benchmarksConfig,
) (benchmarkResult, error) {
	conf := fullConfig.benchmarkSimpleConfig
	start := time.Now()
	var totalReads, totalWrites atomic.Uint64

	bar := benchbar.NewBar(
		fullConfig.barOutput,
		fmt.Sprintf("Inserting %d users", conf.insertXUsers), conf.insertXUsers,
	)
	err := runConcurrently(conf.insertXUsers, conf.insertGoroutines, func(int) error {
		res, err := db.Exec(
			"INSERT INTO users (created, email, active) VALUES (?, ?, ?)",
			time.Now().Unix(), uuid.NewString()+"@example.com", true,
		)
		if err != nil {
			return err
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		bar.Inc()
		totalWrites.Add(uint64(rowsAffected))
		return nil
	})
	if err != nil {
		return benchmarkResult{}, fmt.Errorf("error when inserting: %w", err)
	}
	bar.Finish()

	bar = benchbar.NewBar(fullConfig.barOutput, "Reading users", 1)
	reads, err := readAllUsers(db)
	if err != nil {
		return benchmarkResult{}, err
	}
	totalReads.Add(reads)
	bar.Inc()
	bar.Finish()

	return benchmarkResult{
		Name:        "Simple",
		Duration:    time.Since(start),
		TotalReads:  totalReads.Load(),
		TotalWrites: totalWrites.Load(),
	}, nil
}

// readAllUsers scans every user and returns how many were read.
func readAllUsers(db *sql.DB) (uint64, error) {
	rows, err := db.Query(
		"SELECT id, created, email, active FROM users ORDER BY id",
	)
	if err != nil {
		return 0, fmt.Errorf("error when querying: %w", err)
	}
	defer rows.Close()

	var reads uint64
	for rows.Next() {
		var id, created int64
		var email string
		var active bool
		if err := rows.Scan(&id, &created, &email, &active); err != nil {
			return reads, fmt.Errorf("error when scanning: %w", err)
		}
		reads++
	}

	return reads, rows.Err()
}
