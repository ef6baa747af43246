package sqlitetrackbench

import (
	"io"
	"os"
)

// benchmarksConfig holds all parameters for each benchmark.
type benchmarksConfig struct {
	benchmarkSimpleConfig
	benchmarkCachedConfig
	benchmarkLargeConfig

	// barOutput receives the progress bars.
	barOutput io.Writer
}

func getMattnConfig() benchmarksConfig {
	return benchmarksConfig{
		benchmarkSimpleConfig: benchmarkSimpleConfig{
			insertXUsers:     100_000,
			insertGoroutines: 1,
		},

		benchmarkCachedConfig: benchmarkCachedConfig{
			insertXUsers:       10_000,
			distinctStatements: 16,
			lookupYUsers:       100_000,
			goroutines:         1,
		},

		benchmarkLargeConfig: benchmarkLargeConfig{
			insertXUsers: 10_000,
			insertYBytes: 10_000,
			goroutines:   1,
		},

		barOutput: os.Stdout,
	}
}

func getTrackedConfig() benchmarksConfig {
	conf := getMattnConfig()
	conf.benchmarkSimpleConfig.insertGoroutines = 4
	conf.benchmarkCachedConfig.goroutines = 4
	conf.benchmarkLargeConfig.goroutines = 4
	return conf
}
