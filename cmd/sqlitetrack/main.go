package main

import (
	"context"
	"log"

	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack"
)

func main() {
	if err := sqlitetrack.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}
