package main

// Maintenance script to purge stale study sessions from Postgres.
// Sessions are kept in memory only while active; their durable state lives
// forever unless a client deletes it, so long-running deployments accumulate
// abandoned rows in session_states, passages and textbooks.
//
// Usage:
//   go run scripts/purge_stale_sessions.go --older-than 720h --dry-run

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	olderThan := flag.Duration("older-than", 30*24*time.Hour, "Purge sessions not updated within this duration")
	dryRun := flag.Bool("dry-run", false, "Report what would be purged without deleting")
	flag.Parse()

	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Println("Error: DATABASE_URL is not set")
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		fmt.Printf("Error: failed to connect to Postgres: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	cutoff := time.Now().UTC().Add(-*olderThan)
	fmt.Println("Stale Session Purge Tool")
	fmt.Println("========================")
	fmt.Printf("Cutoff:  %s (older than %s)\n", cutoff.Format(time.RFC3339), *olderThan)
	fmt.Printf("Dry run: %v\n", *dryRun)
	fmt.Println("")

	var stale []string
	err = db.Select(&stale, `SELECT session_id FROM session_states WHERE updated_at < $1`, cutoff)
	if err != nil {
		fmt.Printf("Error: failed to list stale sessions: %v\n", err)
		os.Exit(1)
	}

	if len(stale) == 0 {
		fmt.Println("Nothing to purge")
		return
	}

	fmt.Printf("Found %d stale session(s)\n", len(stale))
	if *dryRun {
		for _, id := range stale {
			fmt.Printf("  would purge %s\n", id)
		}
		return
	}

	for _, id := range stale {
		tx, err := db.Beginx()
		if err != nil {
			fmt.Printf("Error: begin transaction: %v\n", err)
			os.Exit(1)
		}

		if _, err := tx.Exec(`DELETE FROM passages WHERE session_id = $1`, id); err != nil {
			_ = tx.Rollback()
			fmt.Printf("Error: purge passages for %s: %v\n", id, err)
			os.Exit(1)
		}
		if _, err := tx.Exec(`DELETE FROM textbooks WHERE session_id = $1`, id); err != nil {
			_ = tx.Rollback()
			fmt.Printf("Error: purge textbook for %s: %v\n", id, err)
			os.Exit(1)
		}
		if _, err := tx.Exec(`DELETE FROM session_states WHERE session_id = $1`, id); err != nil {
			_ = tx.Rollback()
			fmt.Printf("Error: purge state for %s: %v\n", id, err)
			os.Exit(1)
		}

		if err := tx.Commit(); err != nil {
			fmt.Printf("Error: commit purge for %s: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("  purged %s\n", id)
	}

	fmt.Printf("\nDone: %d session(s) purged\n", len(stale))
}
