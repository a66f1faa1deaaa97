package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"gtncr/internal/audit"
	"gtncr/internal/auth"
	"gtncr/internal/models"
	"gtncr/internal/response"
)

// Backup exports all users (with hashes) and POs as a transportable
// document. Form tables are not included; they survive restores.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	u := h.RequireAdmin(w, r)
	if u == nil {
		return
	}

	doc := models.BackupDocument{
		Meta: models.BackupMeta{
			App:        h.AppName,
			Version:    h.Version,
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
			By:         u.Username,
		},
		Users: []models.BackupUser{},
		POs:   []models.BackupPO{},
	}

	rows, err := h.DB.Query(`SELECT username, password_hash, name, department, is_admin, lead_form_access FROM users ORDER BY id`)
	if err != nil {
		response.Err(w, "Failed to export users", 500)
		return
	}
	for rows.Next() {
		var bu models.BackupUser
		var isAdmin, leadAccess int
		if err := rows.Scan(&bu.Username, &bu.PasswordHash, &bu.Name, &bu.Department, &isAdmin, &leadAccess); err != nil {
			continue
		}
		bu.IsAdmin = isAdmin != 0
		bu.LeadFormAccess = leadAccess != 0
		doc.Users = append(doc.Users, bu)
	}
	rows.Close()

	rows, err = h.DB.Query(`SELECT customer, bid, po, cr FROM pos ORDER BY id`)
	if err != nil {
		response.Err(w, "Failed to export POs", 500)
		return
	}
	for rows.Next() {
		var bp models.BackupPO
		if err := rows.Scan(&bp.Customer, &bp.Bid, &bp.PO, &bp.CR); err != nil {
			continue
		}
		doc.POs = append(doc.POs, bp)
	}
	rows.Close()

	audit.Log(h.DB, h.Hub, u.Username, audit.ActionExport, "backup", "",
		"Exported "+strconv.Itoa(len(doc.Users))+" users and "+strconv.Itoa(len(doc.POs))+" POs", audit.ClientIP(r))
	response.JSON(w, doc)
}

// Restore validates a backup document and atomically replaces all users
// and POs with its contents. Validation gates run in order and
// short-circuit; any insert failure rolls the whole restore back.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	u := h.RequireAdmin(w, r)
	if u == nil {
		return
	}
	var doc models.BackupDocument
	if err := response.DecodeBody(r, &doc); err != nil {
		response.Err(w, "Invalid data format", 400)
		return
	}

	if len(doc.Users) == 0 {
		response.Err(w, "Missing or invalid users array", 400)
		return
	}
	if len(doc.POs) == 0 {
		response.Err(w, "Missing or invalid pos array", 400)
		return
	}
	hasAdmin := false
	for _, bu := range doc.Users {
		if strings.TrimSpace(bu.Username) == "" || bu.Name == "" || bu.Department == "" {
			response.Err(w, "Invalid user data: missing required fields", 400)
			return
		}
		if !auth.ValidHashPrefix(bu.PasswordHash) {
			response.Err(w, "Invalid user data: password_hash must be a valid hash", 400)
			return
		}
		if bu.IsAdmin {
			hasAdmin = true
		}
	}
	if !hasAdmin {
		response.Err(w, "Backup must contain at least one admin user", 400)
		return
	}
	for _, bp := range doc.POs {
		if bp.Customer == "" || bp.Bid == "" || bp.PO == "" || bp.CR == "" {
			response.Err(w, "Invalid PO data: missing required fields", 400)
			return
		}
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, "Failed to start restore", 500)
		return
	}
	defer tx.Rollback()

	// Sessions reference users, so they go first.
	if _, err := tx.Exec("DELETE FROM sessions"); err != nil {
		response.Err(w, "Restore failed", 500)
		return
	}
	if _, err := tx.Exec("DELETE FROM users"); err != nil {
		response.Err(w, "Restore failed", 500)
		return
	}
	if _, err := tx.Exec("DELETE FROM pos"); err != nil {
		response.Err(w, "Restore failed", 500)
		return
	}
	for _, bu := range doc.Users {
		_, err := tx.Exec(`INSERT INTO users (username, password_hash, name, department, is_admin, lead_form_access)
			VALUES (?, ?, ?, ?, ?, ?)`,
			bu.Username, bu.PasswordHash, bu.Name, bu.Department, boolToInt(bu.IsAdmin), boolToInt(bu.LeadFormAccess))
		if err != nil {
			response.Err(w, "Restore failed: "+bu.Username, 500)
			return
		}
	}
	for _, bp := range doc.POs {
		if _, err := tx.Exec("INSERT INTO pos (customer, bid, po, cr) VALUES (?, ?, ?, ?)",
			bp.Customer, bp.Bid, bp.PO, bp.CR); err != nil {
			response.Err(w, "Restore failed", 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, "Restore failed", 500)
		return
	}

	audit.Log(h.DB, h.Hub, u.Username, audit.ActionRestore, "backup", "",
		"Restored "+strconv.Itoa(len(doc.Users))+" users and "+strconv.Itoa(len(doc.POs))+" POs", audit.ClientIP(r))
	response.JSON(w, map[string]bool{"success": true})
}
