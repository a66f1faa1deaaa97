package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/http"
	"time"

	"gtncr/internal/models"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "gtncr_session"

// DefaultSessionHours is the session lifetime when the config leaves it unset.
const DefaultSessionHours = 24

// GenerateToken returns a 64-char random hex session token.
func GenerateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateSession inserts a session row for the user and returns its token
// and expiry. Expired sessions are swept first.
func CreateSession(db *sql.DB, userID, hours int) (string, time.Time, error) {
	if hours <= 0 {
		hours = DefaultSessionHours
	}
	db.Exec("DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP")

	token := GenerateToken()
	// SQLite's CURRENT_TIMESTAMP is UTC, so the stored expiry must be too.
	expires := time.Now().UTC().Add(time.Duration(hours) * time.Hour)
	_, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expires.Format("2006-01-02 15:04:05"))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// DeleteSession removes the session row for a token, if any.
func DeleteSession(db *sql.DB, token string) {
	db.Exec("DELETE FROM sessions WHERE token = ?", token)
}

// CurrentUser resolves the request's session cookie to a user, or nil when
// there is no valid unexpired session.
func CurrentUser(db *sql.DB, r *http.Request) *models.SessionUser {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	return UserByToken(db, cookie.Value)
}

// UserByToken resolves a raw session token to its user.
func UserByToken(db *sql.DB, token string) *models.SessionUser {
	var u models.SessionUser
	var isAdmin, leadAccess int
	err := db.QueryRow(`SELECT u.id, u.username, u.name, u.department, u.is_admin, u.lead_form_access
		FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP`, token).
		Scan(&u.ID, &u.Username, &u.Name, &u.Department, &isAdmin, &leadAccess)
	if err != nil {
		return nil
	}
	u.IsAdmin = isAdmin != 0
	u.LeadFormAccess = leadAccess != 0
	return &u
}

// SetSessionCookie writes the session cookie on a response.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// ClearSessionCookie expires the session cookie on a response.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
