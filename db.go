package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"gtncr/internal/auth"
	"gtncr/internal/config"
	_ "modernc.org/sqlite"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Explicitly set WAL mode (some drivers don't parse connection string params correctly)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations()
}

func formTables(header, rowTable, rowColumns string, amendment bool) []string {
	amendmentCol := ""
	if amendment {
		amendmentCol = "amendment_details TEXT DEFAULT '',"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			po_key TEXT UNIQUE NOT NULL,
			customer TEXT DEFAULT '', bid TEXT DEFAULT '',
			po TEXT DEFAULT '', cr TEXT DEFAULT '',
			record_no TEXT DEFAULT '', record_date TEXT DEFAULT '',
			%s
			last_modified_by TEXT DEFAULT '',
			last_modified_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, header, amendmentCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			form_id INTEGER NOT NULL,
			%s,
			FOREIGN KEY (form_id) REFERENCES %s(id) ON DELETE CASCADE
		)`, rowTable, rowColumns, header),
	}
}

func runMigrations() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			department TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			lead_form_access INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS pos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer TEXT NOT NULL,
			bid TEXT NOT NULL,
			po TEXT NOT NULL,
			cr TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT '',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT DEFAULT '',
			summary TEXT DEFAULT '',
			ip_address TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	itemCols := `item_no TEXT DEFAULT '', part_number TEXT DEFAULT '',
			part_description TEXT DEFAULT '', rev TEXT DEFAULT '', qty TEXT DEFAULT ''`

	tables = append(tables, formTables("cr_forms", "cr_form_rows",
		itemCols+`, cycles TEXT DEFAULT '', remarks TEXT DEFAULT ''`, true)...)
	tables = append(tables, formTables("ped_forms", "ped_form_rows",
		itemCols+`, ped_cycles TEXT DEFAULT '', notes TEXT DEFAULT '', remarks TEXT DEFAULT ''`, true)...)
	tables = append(tables, formTables("lead_forms", "lead_form_rows",
		itemCols+`, customer_required_date TEXT DEFAULT '', standard_lead_time TEXT DEFAULT '',
			gtn_agreed_date TEXT DEFAULT '', remarks TEXT DEFAULT ''`, false)...)

	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

// seedDB creates the bootstrap admin account when it is missing.
func seedDB(cfg *config.Config) {
	b := cfg.Auth.Bootstrap
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", b.Username).Scan(&count); err != nil {
		log.Printf("seed check failed: %v", err)
		return
	}
	if count > 0 {
		return
	}
	hash, err := auth.HashPassword(b.Password)
	if err != nil {
		log.Printf("seed hash failed: %v", err)
		return
	}
	_, err = db.Exec(`INSERT INTO users (username, password_hash, name, department, is_admin) VALUES (?, ?, ?, ?, 1)`,
		b.Username, hash, b.Name, b.Department)
	if err != nil {
		log.Printf("seed admin failed: %v", err)
		return
	}
	log.Printf("Seeded bootstrap admin %q", b.Username)
}
