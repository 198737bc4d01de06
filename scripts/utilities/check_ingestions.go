//go:build ignore

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Status breakdown
	rows, err := db.Query(`
		SELECT status, COUNT(*)
		FROM raw_ingestions
		GROUP BY status
		ORDER BY status
	`)
	if err != nil {
		log.Fatalf("failed to count ingestions: %v", err)
	}
	defer rows.Close()

	fmt.Println("Ingestions by status:")
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			log.Printf("error scanning row: %v", err)
			continue
		}
		total += count
		fmt.Printf("- %s: %d\n", status, count)
	}
	fmt.Printf("Total: %d\n", total)

	// Recent ingestions
	recent, err := db.Query(`
		SELECT id, title, word_count, status, scraped_at
		FROM raw_ingestions
		ORDER BY scraped_at DESC
		LIMIT 5
	`)
	if err != nil {
		log.Fatalf("failed to query ingestions: %v", err)
	}
	defer recent.Close()

	fmt.Println("\nRecent ingestions:")
	for recent.Next() {
		var id, title, status string
		var wordCount int
		var scrapedAt time.Time
		if err := recent.Scan(&id, &title, &wordCount, &status, &scrapedAt); err != nil {
			log.Printf("error scanning row: %v", err)
			continue
		}
		titlePreview := title
		if len(title) > 50 {
			titlePreview = title[:50] + "..."
		}
		fmt.Printf("- %s: %s (%d words, %s, age: %s)\n",
			id[:12], titlePreview, wordCount, status, time.Since(scrapedAt).Round(time.Second))
	}
}
