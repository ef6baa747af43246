package sqlitetrack

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqlite/sqlitetrack/internal/log"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/config"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/repl"
	"github.com/nsqlite/sqlitetrack/internal/trackdb"
	"github.com/nsqlite/sqlitetrack/internal/version"
)

// Run runs the sqlitetrack shell.
func Run(ctx context.Context) error {
	conf := config.MustParse(os.Args)
	logger := log.NewLoggerWithLevel(os.Stderr, conf.SlogLevel())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	conn, err := trackdb.Open(conf.Database, conf.OpenFlags(), trackdb.Config{
		Logger:             logger,
		BusyTimeout:        conf.BusyTimeout,
		StatementCacheSize: conf.StatementCacheSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.ErrorNs(log.NsShell, "failed to close database", log.KV{"error": err})
		}
	}()

	fmt.Println(version.ShellVersion(conn.LibVersion()))

	// While a statement runs the terminal is not in raw mode, so CTRL+C
	// arrives as a signal and cancels the statement instead of the shell.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-interrupts:
				logger.DebugNs(log.NsShell, "interrupting running statement")
				conn.Interrupt()
			}
		}
	}()

	rp := repl.NewRepl(ctx, stop, conf, conn, os.Stdout)
	defer rp.Shutdown()
	go func() {
		if err := rp.Start(); err != nil {
			fmt.Println(err)
			stop()
		}
	}()

	<-ctx.Done()
	fmt.Printf("\nGoodbye!\n\n")
	return nil
}
