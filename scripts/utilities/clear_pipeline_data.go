//go:build ignore

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	fmt.Println("Clearing pipeline data (ingestions, signals, execution logs, inference logs)...")
	fmt.Println("Keeping: projects, sources")
	fmt.Println()

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to start transaction: %v", err)
	}
	defer tx.Rollback()

	// Order matters: evidence references signals and ingestions.
	tables := []string{
		"signal_evidence",
		"signals",
		"raw_ingestions",
		"execution_logs",
		"inference_logs",
	}

	for _, table := range tables {
		result, err := tx.Exec("DELETE FROM " + table)
		if err != nil {
			log.Fatalf("Failed to clear %s: %v", table, err)
		}
		affected, _ := result.RowsAffected()
		fmt.Printf("- %s: %d rows deleted\n", table, affected)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	fmt.Println("\nDone. Sources keep their last_scraped_at; the next scrape re-ingests everything.")
}
