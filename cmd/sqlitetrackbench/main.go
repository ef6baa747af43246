package main

import (
	"context"
	"log"

	"github.com/nsqlite/sqlitetrack/internal/sqlitetrackbench"
)

func main() {
	if err := sqlitetrackbench.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}
