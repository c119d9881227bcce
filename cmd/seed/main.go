package main

import (
	"context"
	"log"
	"time"

	"github.com/pdp-edu/unimonitor/internal/config"
	"github.com/pdp-edu/unimonitor/internal/db"
	"github.com/pdp-edu/unimonitor/internal/records"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	res, err := records.SeedAdmins(ctx, records.NewSQLStore(dbh, cfg.DBDriver), records.DefaultAdmins(nil))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	for _, r := range res {
		if r.Created {
			log.Printf("created %s (password: %s)", r.Username, r.Password)
		} else {
			log.Printf("%s already exists", r.Username)
		}
	}
}
