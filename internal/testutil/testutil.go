// Package testutil provides shared helpers for handler tests: an
// in-memory database with the full schema, user/session factories, and
// request builders.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gtncr/internal/auth"
	"gtncr/internal/models"

	_ "modernc.org/sqlite"
)

// SetupTestDB creates an in-memory SQLite database with foreign keys
// enabled, all tables created, and the bootstrap admin seeded.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	createTables(t, db)
	seedAdmin(t, db)
	return db
}

func createTables(t *testing.T, db *sql.DB) {
	t.Helper()
	tables := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			department TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			lead_form_access INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE pos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer TEXT NOT NULL, bid TEXT NOT NULL,
			po TEXT NOT NULL, cr TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT '', action TEXT NOT NULL,
			module TEXT NOT NULL, record_id TEXT DEFAULT '',
			summary TEXT DEFAULT '', ip_address TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE cr_forms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			po_key TEXT UNIQUE NOT NULL,
			customer TEXT DEFAULT '', bid TEXT DEFAULT '',
			po TEXT DEFAULT '', cr TEXT DEFAULT '',
			record_no TEXT DEFAULT '', record_date TEXT DEFAULT '',
			amendment_details TEXT DEFAULT '',
			last_modified_by TEXT DEFAULT '',
			last_modified_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE cr_form_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			form_id INTEGER NOT NULL,
			item_no TEXT DEFAULT '', part_number TEXT DEFAULT '',
			part_description TEXT DEFAULT '', rev TEXT DEFAULT '', qty TEXT DEFAULT '',
			cycles TEXT DEFAULT '', remarks TEXT DEFAULT '',
			FOREIGN KEY (form_id) REFERENCES cr_forms(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE ped_forms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			po_key TEXT UNIQUE NOT NULL,
			customer TEXT DEFAULT '', bid TEXT DEFAULT '',
			po TEXT DEFAULT '', cr TEXT DEFAULT '',
			record_no TEXT DEFAULT '', record_date TEXT DEFAULT '',
			amendment_details TEXT DEFAULT '',
			last_modified_by TEXT DEFAULT '',
			last_modified_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE ped_form_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			form_id INTEGER NOT NULL,
			item_no TEXT DEFAULT '', part_number TEXT DEFAULT '',
			part_description TEXT DEFAULT '', rev TEXT DEFAULT '', qty TEXT DEFAULT '',
			ped_cycles TEXT DEFAULT '', notes TEXT DEFAULT '', remarks TEXT DEFAULT '',
			FOREIGN KEY (form_id) REFERENCES ped_forms(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE lead_forms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			po_key TEXT UNIQUE NOT NULL,
			customer TEXT DEFAULT '', bid TEXT DEFAULT '',
			po TEXT DEFAULT '', cr TEXT DEFAULT '',
			record_no TEXT DEFAULT '', record_date TEXT DEFAULT '',
			last_modified_by TEXT DEFAULT '',
			last_modified_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE lead_form_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			form_id INTEGER NOT NULL,
			item_no TEXT DEFAULT '', part_number TEXT DEFAULT '',
			part_description TEXT DEFAULT '', rev TEXT DEFAULT '', qty TEXT DEFAULT '',
			customer_required_date TEXT DEFAULT '', standard_lead_time TEXT DEFAULT '',
			gtn_agreed_date TEXT DEFAULT '', remarks TEXT DEFAULT '',
			FOREIGN KEY (form_id) REFERENCES lead_forms(id) ON DELETE CASCADE
		)`,
	}
	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
}

func seedAdmin(t *testing.T, db *sql.DB) {
	t.Helper()
	hash, err := auth.HashPassword("admin")
	if err != nil {
		t.Fatalf("Failed to hash admin password: %v", err)
	}
	_, err = db.Exec(`INSERT INTO users (username, password_hash, name, department, is_admin) VALUES (?, ?, ?, ?, 1)`,
		"admin", hash, "IT Administrator", "it")
	if err != nil {
		t.Fatalf("Failed to seed admin user: %v", err)
	}
}

// CreateTestUser creates a user and returns its ID.
func CreateTestUser(t *testing.T, db *sql.DB, username, password string, isAdmin, leadAccess bool) int {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	adminInt, leadInt := 0, 0
	if isAdmin {
		adminInt = 1
	}
	if leadAccess {
		leadInt = 1
	}
	result, err := db.Exec(`INSERT INTO users (username, password_hash, name, department, is_admin, lead_form_access)
		VALUES (?, ?, ?, ?, ?, ?)`,
		username, hash, username+" Display", "engineering", adminInt, leadInt)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	id, _ := result.LastInsertId()
	return int(id)
}

// CreateTestSession inserts a session for the user and returns its token.
func CreateTestSession(t *testing.T, db *sql.DB, userID int) string {
	t.Helper()
	token := "test-session-" + time.Now().Format("20060102150405.000000000")
	expires := time.Now().UTC().Add(24 * time.Hour)
	_, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expires.Format("2006-01-02 15:04:05"))
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return token
}

// LoginAdmin returns a session token for the seeded bootstrap admin.
func LoginAdmin(t *testing.T, db *sql.DB) string {
	t.Helper()
	var adminID int
	if err := db.QueryRow("SELECT id FROM users WHERE username = 'admin'").Scan(&adminID); err != nil {
		t.Fatalf("Failed to find admin user: %v", err)
	}
	return CreateTestSession(t, db, adminID)
}

// LoginUser creates a regular user and returns their session token.
func LoginUser(t *testing.T, db *sql.DB, username string) string {
	t.Helper()
	userID := CreateTestUser(t, db, username, "password", false, false)
	return CreateTestSession(t, db, userID)
}

// AuthedRequest builds a request carrying a session cookie.
func AuthedRequest(method, path string, body []byte, sessionToken string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: sessionToken})
	}
	return req
}

// AuthedJSONRequest builds an authed request with a JSON-marshalled body.
func AuthedJSONRequest(t *testing.T, method, path string, body interface{}, sessionToken string) *http.Request {
	t.Helper()
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
	}
	req := AuthedRequest(method, path, bodyBytes, sessionToken)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertStatus checks the recorded HTTP status code.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes a list-envelope response into v.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}

// DecodeJSON decodes a plain JSON response body into v.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}
