// Package registry implements the purchase-order master list.
package registry

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

// Handler holds dependencies for the PO registry endpoints.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

// PORequest is the create/update body. All four fields are required
// non-empty after trimming.
type PORequest struct {
	Customer string `json:"customer"`
	Bid      string `json:"bid"`
	PO       string `json:"po"`
	CR       string `json:"cr"`
}

func (req *PORequest) trim() *validation.ValidationErrors {
	req.Customer = strings.TrimSpace(req.Customer)
	req.Bid = strings.TrimSpace(req.Bid)
	req.PO = strings.TrimSpace(req.PO)
	req.CR = strings.TrimSpace(req.CR)

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "customer", req.Customer)
	validation.RequireField(ve, "bid", req.Bid)
	validation.RequireField(ve, "po", req.PO)
	validation.RequireField(ve, "cr", req.CR)
	return ve
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) *models.SessionUser {
	u := auth.CurrentUser(h.DB, r)
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

// List returns all POs, newest first. Any authenticated user may read.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if auth.CurrentUser(h.DB, r) == nil {
		response.Err(w, "Unauthorized", 401)
		return
	}
	rows, err := h.DB.Query(`SELECT id, customer, bid, po, cr, created_at, updated_at FROM pos ORDER BY id DESC`)
	if err != nil {
		response.Err(w, "Failed to list POs", 500)
		return
	}
	defer rows.Close()

	pos := []models.PurchaseOrder{}
	for rows.Next() {
		var p models.PurchaseOrder
		if err := rows.Scan(&p.ID, &p.Customer, &p.Bid, &p.PO, &p.CR, &p.CreatedAt, &p.UpdatedAt); err != nil {
			continue
		}
		pos = append(pos, p)
	}
	response.List(w, pos)
}

// Create inserts a PO.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	var req PORequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	if ve := req.trim(); ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	result, err := h.DB.Exec("INSERT INTO pos (customer, bid, po, cr) VALUES (?, ?, ?, ?)",
		req.Customer, req.Bid, req.PO, req.CR)
	if err != nil {
		response.Err(w, "Failed to create PO", 500)
		return
	}
	id, _ := result.LastInsertId()
	audit.LogRequest(h.DB, h.Hub, r, audit.ActionCreate, "po", strconv.FormatInt(id, 10), "Created PO "+req.PO)

	w.WriteHeader(201)
	response.JSON(w, map[string]interface{}{
		"success": true,
		"po": models.PurchaseOrder{
			ID:       int(id),
			Customer: req.Customer,
			Bid:      req.Bid,
			PO:       req.PO,
			CR:       req.CR,
		},
	})
}

// Update rewrites all four fields and refreshes updated_at.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, idStr string) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid PO ID", 400)
		return
	}
	var req PORequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	if ve := req.trim(); ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	result, err := h.DB.Exec(`UPDATE pos SET customer = ?, bid = ?, po = ?, cr = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		req.Customer, req.Bid, req.PO, req.CR, id)
	if err != nil {
		response.Err(w, "Failed to update PO", 500)
		return
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		response.Err(w, "PO not found", 404)
		return
	}
	audit.LogRequest(h.DB, h.Hub, r, audit.ActionUpdate, "po", idStr, "Updated PO "+req.PO)

	response.JSON(w, map[string]interface{}{
		"success": true,
		"po": models.PurchaseOrder{
			ID:       id,
			Customer: req.Customer,
			Bid:      req.Bid,
			PO:       req.PO,
			CR:       req.CR,
		},
	})
}

// Delete removes a PO unconditionally. Form records key on free-text
// po_key, so no referential check applies.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, idStr string) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "Invalid PO ID", 400)
		return
	}
	result, err := h.DB.Exec("DELETE FROM pos WHERE id = ?", id)
	if err != nil {
		response.Err(w, "Failed to delete PO", 500)
		return
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		response.Err(w, "PO not found", 404)
		return
	}
	audit.LogRequest(h.DB, h.Hub, r, audit.ActionDelete, "po", idStr, "Deleted PO")
	response.JSON(w, map[string]bool{"success": true})
}
