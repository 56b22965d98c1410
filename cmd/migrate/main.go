// Command migrate applies the SQL files under migrations/ in name order,
// tracking what already ran in a schema_migrations ledger so re-runs only
// apply new files.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/cancelkit/cancelkit/internal/config"
)

const ledgerTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func main() {
	dir := flag.String("dir", "migrations", "directory with .sql migration files")
	listOnly := flag.Bool("list", false, "print the applied-migrations ledger and exit")
	flag.Parse()

	db, err := sql.Open("postgres", databaseURL())
	if err != nil {
		log.Fatalf("[Migrate] connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("[Migrate] ping: %v", err)
	}

	if _, err := db.Exec(ledgerTable); err != nil {
		log.Fatalf("[Migrate] creating ledger: %v", err)
	}

	if *listOnly {
		if err := printLedger(db); err != nil {
			log.Fatalf("[Migrate] list: %v", err)
		}
		return
	}

	applied, skipped, err := run(db, *dir)
	if err != nil {
		log.Fatalf("[Migrate] %v", err)
	}
	log.Printf("[Migrate] done: %d applied, %d already up to date", applied, skipped)
}

// databaseURL prefers the DATABASE_URL env var and falls back to the
// service config file, so the tool runs both in CI and next to the server.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil || cfg.Database.URL == "" {
		log.Fatal("[Migrate] set DATABASE_URL or database.url in config/config.yaml")
	}
	return cfg.Database.URL
}

// run applies every pending migration in name order
func run(db *sql.DB, dir string) (applied, skipped int, err error) {
	files, err := pendingFiles(db, dir)
	if err != nil {
		return 0, 0, err
	}

	for _, f := range files {
		if f.done {
			skipped++
			continue
		}
		if err := apply(db, f); err != nil {
			return applied, skipped, fmt.Errorf("%s: %w", f.name, err)
		}
		log.Printf("[Migrate] applied %s", f.name)
		applied++
	}
	return applied, skipped, nil
}

type migrationFile struct {
	name string
	path string
	done bool
}

// pendingFiles lists the .sql files in dir, name-sorted, marked against
// the ledger.
func pendingFiles(db *sql.DB, dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	done := map[string]bool{}
	rows, err := db.Query(`SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, migrationFile{
			name: e.Name(),
			path: filepath.Join(dir, e.Name()),
			done: done[e.Name()],
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// apply runs one migration and its ledger entry in a single transaction
func apply(db *sql.DB, f migrationFile) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("file is empty")
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(data)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, f.name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// printLedger shows what has been applied and when
func printLedger(db *sql.DB) error {
	rows, err := db.Query(`SELECT name, applied_at FROM schema_migrations ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var name, appliedAt string
		if err := rows.Scan(&name, &appliedAt); err != nil {
			return err
		}
		fmt.Printf("  %s  %s\n", name, appliedAt)
		n++
	}
	fmt.Printf("Total: %d applied\n", n)
	return rows.Err()
}
