package admin

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"gtncr/internal/audit"
	"gtncr/internal/auth"
	"gtncr/internal/models"
	"gtncr/internal/response"
	"gtncr/internal/validation"
	"gtncr/internal/websocket"
)

// Handler holds dependencies for the auth and user-management endpoints.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub

	// AppName and Version stamp backup documents.
	AppName string
	Version string

	// SessionHours is the session lifetime issued on login.
	SessionHours int

	// BootstrapUsername is the seeded admin account that can never be
	// deleted.
	BootstrapUsername string
}

// LoginRequest is the /api/login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest is the POST /api/users body.
type CreateUserRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	IsAdmin        bool   `json:"isAdmin"`
	LeadFormAccess bool   `json:"leadFormAccess"`
}

// UpdateUserRequest is the PUT /api/users/{id} body. Password is only
// rehashed when non-empty; the role flags are taken as submitted.
type UpdateUserRequest struct {
	Name           string `json:"name"`
	Department     string `json:"department"`
	Password       string `json:"password"`
	IsAdmin        bool   `json:"isAdmin"`
	LeadFormAccess bool   `json:"leadFormAccess"`
}

func sessionUserJSON(u *models.SessionUser) map[string]interface{} {
	return map[string]interface{}{
		"username":       u.Username,
		"name":           u.Name,
		"department":     u.Department,
		"isAdmin":        u.IsAdmin,
		"leadFormAccess": u.LeadFormAccess,
	}
}

// GetCurrentUser resolves the request's session to a user, or nil.
func (h *Handler) GetCurrentUser(r *http.Request) *models.SessionUser {
	return auth.CurrentUser(h.DB, r)
}

// RequireAdmin writes 401/403 and returns nil unless the session user is
// an admin.
func (h *Handler) RequireAdmin(w http.ResponseWriter, r *http.Request) *models.SessionUser {
	u := h.GetCurrentUser(r)
	if u == nil {
		response.Err(w, "Unauthorized", 401)
		return nil
	}
	if !u.IsAdmin {
		response.Err(w, "Admin access required", 403)
		return nil
	}
	return u
}

// Login verifies credentials and issues a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.Err(w, "Username and password required", 400)
		return
	}

	var u models.SessionUser
	var hash string
	var isAdmin, leadAccess int
	err := h.DB.QueryRow(`SELECT id, username, password_hash, name, department, is_admin, lead_form_access
		FROM users WHERE username = ?`, req.Username).
		Scan(&u.ID, &u.Username, &hash, &u.Name, &u.Department, &isAdmin, &leadAccess)
	if err != nil || !auth.CheckPassword(hash, req.Password) {
		audit.Log(h.DB, nil, req.Username, audit.ActionLogin, "auth", "", "Failed login", audit.ClientIP(r))
		response.Err(w, "Invalid username or password", 401)
		return
	}
	u.IsAdmin = isAdmin != 0
	u.LeadFormAccess = leadAccess != 0

	token, expires, err := auth.CreateSession(h.DB, u.ID, h.SessionHours)
	if err != nil {
		response.Err(w, "Failed to create session", 500)
		return
	}
	auth.SetSessionCookie(w, token, expires)
	audit.Log(h.DB, h.Hub, u.Username, audit.ActionLogin, "auth", strconv.Itoa(u.ID), "Logged in", audit.ClientIP(r))

	response.JSON(w, map[string]interface{}{
		"success": true,
		"user":    sessionUserJSON(&u),
	})
}

// Logout drops the session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		if u := auth.UserByToken(h.DB, cookie.Value); u != nil {
			audit.Log(h.DB, nil, u.Username, audit.ActionLogout, "auth", strconv.Itoa(u.ID), "Logged out", audit.ClientIP(r))
		}
		auth.DeleteSession(h.DB, cookie.Value)
	}
	auth.ClearSessionCookie(w)
	response.JSON(w, map[string]bool{"success": true})
}

// Session reflects the current session back to the client.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	u := h.GetCurrentUser(r)
	if u == nil {
		response.JSON(w, map[string]bool{"loggedIn": false})
		return
	}
	response.JSON(w, map[string]interface{}{
		"loggedIn": true,
		"user":     sessionUserJSON(u),
	})
}

// ListUsers returns all users, oldest first.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h.RequireAdmin(w, r) == nil {
		return
	}
	rows, err := h.DB.Query(`SELECT id, username, name, department, is_admin, lead_form_access FROM users ORDER BY id`)
	if err != nil {
		response.Err(w, "Failed to list users", 500)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		var isAdmin, leadAccess int
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Department, &isAdmin, &leadAccess); err != nil {
			continue
		}
		u.IsAdmin = isAdmin != 0
		u.LeadFormAccess = leadAccess != 0
		users = append(users, u)
	}
	response.List(w, users)
}

// CreateUser adds a user. All four text fields are required; duplicate
// usernames conflict.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if h.RequireAdmin(w, r) == nil {
		return
	}
	var req CreateUserRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	req.Department = strings.TrimSpace(req.Department)

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "username", req.Username)
	validation.RequireField(ve, "password", req.Password)
	validation.RequireField(ve, "name", req.Name)
	validation.RequireField(ve, "department", req.Department)
	validation.ValidateMaxLength(ve, "username", req.Username, 100)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Err(w, "Failed to hash password", 500)
		return
	}
	result, err := h.DB.Exec(`INSERT INTO users (username, password_hash, name, department, is_admin, lead_form_access)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.Username, hash, req.Name, req.Department, boolToInt(req.IsAdmin), boolToInt(req.LeadFormAccess))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			response.Err(w, "Username already exists", 409)
			return
		}
		response.Err(w, "Failed to create user", 500)
		return
	}
	id, _ := result.LastInsertId()
	audit.LogRequest(h.DB, h.Hub, r, audit.ActionCreate, "user", strconv.FormatInt(id, 10), "Created user "+req.Username)

	w.WriteHeader(201)
	response.JSON(w, map[string]interface{}{
		"success": true,
		"user": models.User{
			ID:             int(id),
			Username:       req.Username,
			Name:           req.Name,
			Department:     req.Department,
			IsAdmin:        req.IsAdmin,
			LeadFormAccess: req.LeadFormAccess,
		},
	})
}

// UpdateUser edits name, department, role flags, and optionally the
// password. Demoting the last remaining admin is refused.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request, idStr string) {
	if h.RequireAdmin(w, r) == nil {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid user ID", 400)
		return
	}
	var req UpdateUserRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Department = strings.TrimSpace(req.Department)

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", req.Name)
	validation.RequireField(ve, "department", req.Department)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	var username string
	var wasAdmin int
	err = h.DB.QueryRow("SELECT username, is_admin FROM users WHERE id = ?", id).Scan(&username, &wasAdmin)
	if err != nil {
		response.Err(w, "User not found", 404)
		return
	}
	if wasAdmin != 0 && !req.IsAdmin && h.adminCount() <= 1 {
		response.Err(w, "Cannot remove the last admin user", 400)
		return
	}

	// Hash before touching the row so a hashing failure leaves the user
	// untouched; the write itself is a single statement.
	var hash string
	if req.Password != "" {
		hash, err = auth.HashPassword(req.Password)
		if err != nil {
			response.Err(w, "Failed to hash password", 500)
			return
		}
	}
	if hash != "" {
		_, err = h.DB.Exec(`UPDATE users SET name = ?, department = ?, is_admin = ?, lead_form_access = ?, password_hash = ? WHERE id = ?`,
			req.Name, req.Department, boolToInt(req.IsAdmin), boolToInt(req.LeadFormAccess), hash, id)
	} else {
		_, err = h.DB.Exec(`UPDATE users SET name = ?, department = ?, is_admin = ?, lead_form_access = ? WHERE id = ?`,
			req.Name, req.Department, boolToInt(req.IsAdmin), boolToInt(req.LeadFormAccess), id)
	}
	if err != nil {
		response.Err(w, "Failed to update user", 500)
		return
	}
	audit.LogRequest(h.DB, h.Hub, r, audit.ActionUpdate, "user", idStr, "Updated user "+username)
	response.JSON(w, map[string]bool{"success": true})
}

// DeleteUser removes a user. The bootstrap admin account and the last
// remaining admin are protected.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request, idStr string) {
	if h.RequireAdmin(w, r) == nil {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid user ID", 400)
		return
	}

	var username string
	var isAdmin int
	err = h.DB.QueryRow("SELECT username, is_admin FROM users WHERE id = ?", id).Scan(&username, &isAdmin)
	if err != nil {
		response.Err(w, "User not found", 404)
		return
	}
	if username == h.BootstrapUsername && isAdmin != 0 {
		response.Err(w, "Cannot delete default admin user", 400)
		return
	}
	if isAdmin != 0 && h.adminCount() <= 1 {
		response.Err(w, "Cannot delete last admin user", 400)
		return
	}

	if _, err := h.DB.Exec("DELETE FROM users WHERE id = ?", id); err != nil {
		response.Err(w, "Failed to delete user", 500)
		return
	}
	h.DB.Exec("DELETE FROM sessions WHERE user_id = ?", id)
	audit.LogRequest(h.DB, h.Hub, r, audit.ActionDelete, "user", idStr, "Deleted user "+username)
	response.JSON(w, map[string]bool{"success": true})
}

// ListAudit returns the most recent audit entries, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.RequireAdmin(w, r) == nil {
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	rows, err := h.DB.Query(`SELECT id, username, action, module, record_id, summary, ip_address, created_at
		FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		response.Err(w, "Failed to list audit log", 500)
		return
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.IPAddress, &e.CreatedAt); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	response.List(w, entries)
}

func (h *Handler) adminCount() int {
	var n int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM users WHERE is_admin = 1").Scan(&n); err != nil {
		return 0
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
