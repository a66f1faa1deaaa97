package audit

import (
	"database/sql"
	"log"
	"net/http"
	"strings"

	"gtncr/internal/auth"
	"gtncr/internal/websocket"
)

// Action constants.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionLogin   = "login"
	ActionLogout  = "logout"
	ActionExport  = "export"
	ActionRestore = "restore"
)

// Log writes an audit entry and broadcasts the change to the hub.
// Audit failures are logged, never surfaced to the caller.
func Log(db *sql.DB, hub *websocket.Hub, username, action, module, recordID, summary, ip string) {
	_, err := db.Exec("INSERT INTO audit_log (username, action, module, record_id, summary, ip_address) VALUES (?, ?, ?, ?, ?, ?)",
		username, action, module, recordID, summary, ip)
	if err != nil {
		log.Printf("audit log error: %v", err)
	}
	if hub != nil {
		hub.BroadcastChange(module, action, recordID)
	}
}

// LogRequest writes an audit entry attributed to the request's session user.
func LogRequest(db *sql.DB, hub *websocket.Hub, r *http.Request, action, module, recordID, summary string) {
	username := "system"
	if u := auth.CurrentUser(db, r); u != nil {
		username = u.Username
	}
	Log(db, hub, username, action, module, recordID, summary, ClientIP(r))
}

// ClientIP extracts the real client IP from the request (handles proxies).
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
