package main

import (
	"context"
	"flag"
	"log"
	"time"

	"wowserver/internal/config"
	"wowserver/internal/db"
)

// dbcleanup drops the service tables so a test database starts empty.
func main() {
	recreate := flag.Bool("recreate", false, "create empty tables after dropping them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := db.Init(cfg); err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.DropSchema(ctx, db.DB()); err != nil {
		log.Fatalf("drop schema: %v", err)
	}
	log.Printf("dropped %s and %s (%s)", db.TableCharacters, db.TableAccounts, cfg.DBDriver)
	if *recreate {
		if err := db.EnsureSchema(ctx, db.DB()); err != nil {
			log.Fatalf("create schema: %v", err)
		}
		log.Printf("recreated empty tables")
	}
}
