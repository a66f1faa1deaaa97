// Package forms implements the per-PO form store: one header plus ordered
// child rows per (kind, po_key), for the cr, ped, and lead form kinds.
// The three kinds share a single save/load implementation driven by a
// kind descriptor.
package forms

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gtncr/internal/audit"
	"gtncr/internal/auth"
	"gtncr/internal/models"
	"gtncr/internal/response"
	"gtncr/internal/websocket"
)

// Handler holds dependencies for the form endpoints.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

// Kind describes one form family's storage shape.
type Kind struct {
	Name        string
	Title       string
	HeaderTable string
	RowTable    string

	// HasAmendment marks kinds whose amendment_details field is only
	// writable by admins.
	HasAmendment bool

	// NeedsLeadAccess marks kinds gated behind the per-user lead form
	// access flag (admins always pass).
	NeedsLeadAccess bool

	rowColumns []string
	rowValues  func(row models.FormRow) []any
	scanRow    func(rows *sql.Rows) (models.FormRow, error)
}

var kinds = map[string]Kind{
	"cr": {
		Name:         "cr",
		Title:        "Contract Review",
		HeaderTable:  "cr_forms",
		RowTable:     "cr_form_rows",
		HasAmendment: true,
		rowColumns:   []string{"item_no", "part_number", "part_description", "rev", "qty", "cycles", "remarks"},
		rowValues: func(row models.FormRow) []any {
			return []any{row.ItemNo, row.PartNumber, row.PartDescription, row.Rev, row.Qty, encodeList(row.Cycles), row.Remarks}
		},
		scanRow: func(rows *sql.Rows) (models.FormRow, error) {
			var row models.FormRow
			var cycles string
			err := rows.Scan(&row.ItemNo, &row.PartNumber, &row.PartDescription, &row.Rev, &row.Qty, &cycles, &row.Remarks)
			row.Cycles = decodeList(cycles)
			return row, err
		},
	},
	"ped": {
		Name:         "ped",
		Title:        "PED Review",
		HeaderTable:  "ped_forms",
		RowTable:     "ped_form_rows",
		HasAmendment: true,
		rowColumns:   []string{"item_no", "part_number", "part_description", "rev", "qty", "ped_cycles", "notes", "remarks"},
		rowValues: func(row models.FormRow) []any {
			return []any{row.ItemNo, row.PartNumber, row.PartDescription, row.Rev, row.Qty, encodeList(row.Cycles), encodeList(row.Notes), row.Remarks}
		},
		scanRow: func(rows *sql.Rows) (models.FormRow, error) {
			var row models.FormRow
			var cycles, notes string
			err := rows.Scan(&row.ItemNo, &row.PartNumber, &row.PartDescription, &row.Rev, &row.Qty, &cycles, &notes, &row.Remarks)
			row.Cycles = decodeList(cycles)
			row.Notes = decodeList(notes)
			return row, err
		},
	},
	"lead": {
		Name:            "lead",
		Title:           "Lead Time",
		HeaderTable:     "lead_forms",
		RowTable:        "lead_form_rows",
		NeedsLeadAccess: true,
		rowColumns:      []string{"item_no", "part_number", "part_description", "rev", "qty", "customer_required_date", "standard_lead_time", "gtn_agreed_date", "remarks"},
		rowValues: func(row models.FormRow) []any {
			return []any{row.ItemNo, row.PartNumber, row.PartDescription, row.Rev, row.Qty,
				row.CustomerRequiredDate, row.StandardLeadTime, row.GtnAgreedDate, row.Remarks}
		},
		scanRow: func(rows *sql.Rows) (models.FormRow, error) {
			var row models.FormRow
			err := rows.Scan(&row.ItemNo, &row.PartNumber, &row.PartDescription, &row.Rev, &row.Qty,
				&row.CustomerRequiredDate, &row.StandardLeadTime, &row.GtnAgreedDate, &row.Remarks)
			return row, err
		},
	},
}

// KindByName looks up a kind descriptor.
func KindByName(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// encodeList serializes an ordered list of scalar values (including empty
// slots) into the opaque per-row blob.
func encodeList(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	data, _ := json.Marshal(vals)
	return string(data)
}

// decodeList reconstitutes a stored blob. Empty or missing blobs load as
// no list at all.
func decodeList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var vals []string
	if err := json.Unmarshal([]byte(s), &vals); err != nil {
		return nil
	}
	return vals
}

// SaveRequest is the /api/{kind}-form/save body.
type SaveRequest struct {
	PoKey            string           `json:"poKey"`
	Customer         string           `json:"customer"`
	Bid              string           `json:"bid"`
	PO               string           `json:"po"`
	CR               string           `json:"cr"`
	RecordNo         string           `json:"recordNo"`
	RecordDate       string           `json:"recordDate"`
	AmendmentDetails string           `json:"amendmentDetails"`
	Rows             []models.FormRow `json:"rows"`
}

// requireAccess resolves the session user and enforces the kind's access
// flag. Returns nil after writing the error response on failure.
func (h *Handler) requireAccess(w http.ResponseWriter, r *http.Request, k Kind) *models.SessionUser {
	u := auth.CurrentUser(h.DB, r)
	if u == nil {
		response.Err(w, "Unauthorized", 401)
		return nil
	}
	if k.NeedsLeadAccess && !u.IsAdmin && !u.LeadFormAccess {
		response.Err(w, "Lead form access required", 403)
		return nil
	}
	return u
}

// Save upserts the header for (kind, poKey) and fully replaces its row
// set, all inside one transaction. For cr/ped the amendment_details field
// is only taken from the payload when the acting user is an admin;
// otherwise the stored value is preserved.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request, kindName string) {
	k, ok := KindByName(kindName)
	if !ok {
		response.Err(w, "Unknown form kind", 404)
		return
	}
	u := h.requireAccess(w, r, k)
	if u == nil {
		return
	}

	var req SaveRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	poKey := strings.TrimSpace(req.PoKey)
	if poKey == "" {
		response.Err(w, "PO key required", 400)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, "Failed to save form", 500)
		return
	}
	defer tx.Rollback()

	var headerID int64
	exists := true
	amendment := ""
	if k.HasAmendment {
		var id int64
		var prev string
		err = tx.QueryRow("SELECT id, COALESCE(amendment_details, '') FROM "+k.HeaderTable+" WHERE po_key = ?", poKey).
			Scan(&id, &prev)
		if err == sql.ErrNoRows {
			exists = false
		} else if err != nil {
			response.Err(w, "Failed to save form", 500)
			return
		} else {
			headerID = id
		}
		// Amendment details are admin-only; everyone else keeps the
		// stored value.
		amendment = prev
		if u.IsAdmin {
			amendment = req.AmendmentDetails
		}
	} else {
		var id int64
		err = tx.QueryRow("SELECT id FROM "+k.HeaderTable+" WHERE po_key = ?", poKey).Scan(&id)
		if err == sql.ErrNoRows {
			exists = false
		} else if err != nil {
			response.Err(w, "Failed to save form", 500)
			return
		} else {
			headerID = id
		}
	}

	if exists {
		if k.HasAmendment {
			_, err = tx.Exec(`UPDATE `+k.HeaderTable+` SET customer = ?, bid = ?, po = ?, cr = ?, record_no = ?, record_date = ?,
				amendment_details = ?, last_modified_by = ?, last_modified_at = ? WHERE id = ?`,
				req.Customer, req.Bid, req.PO, req.CR, req.RecordNo, req.RecordDate, amendment, u.Name, now, headerID)
		} else {
			_, err = tx.Exec(`UPDATE `+k.HeaderTable+` SET customer = ?, bid = ?, po = ?, cr = ?, record_no = ?, record_date = ?,
				last_modified_by = ?, last_modified_at = ? WHERE id = ?`,
				req.Customer, req.Bid, req.PO, req.CR, req.RecordNo, req.RecordDate, u.Name, now, headerID)
		}
	} else {
		var result sql.Result
		if k.HasAmendment {
			result, err = tx.Exec(`INSERT INTO `+k.HeaderTable+` (po_key, customer, bid, po, cr, record_no, record_date,
				amendment_details, last_modified_by, last_modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				poKey, req.Customer, req.Bid, req.PO, req.CR, req.RecordNo, req.RecordDate, amendment, u.Name, now)
		} else {
			result, err = tx.Exec(`INSERT INTO `+k.HeaderTable+` (po_key, customer, bid, po, cr, record_no, record_date,
				last_modified_by, last_modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				poKey, req.Customer, req.Bid, req.PO, req.CR, req.RecordNo, req.RecordDate, u.Name, now)
		}
		if err == nil {
			headerID, err = result.LastInsertId()
		}
	}
	if err != nil {
		response.Err(w, "Failed to save form", 500)
		return
	}

	// Full row-set replace: prior rows go away, submitted rows come in
	// payload order. Rows without an item number are skipped.
	if _, err := tx.Exec("DELETE FROM "+k.RowTable+" WHERE form_id = ?", headerID); err != nil {
		response.Err(w, "Failed to save form", 500)
		return
	}
	insertSQL := "INSERT INTO " + k.RowTable + " (form_id, " + strings.Join(k.rowColumns, ", ") + ") VALUES (?" +
		strings.Repeat(", ?", len(k.rowColumns)) + ")"
	for _, row := range req.Rows {
		if strings.TrimSpace(row.ItemNo) == "" {
			continue
		}
		args := append([]any{headerID}, k.rowValues(row)...)
		if _, err := tx.Exec(insertSQL, args...); err != nil {
			response.Err(w, "Failed to save form", 500)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		response.Err(w, "Failed to save form", 500)
		return
	}

	audit.Log(h.DB, h.Hub, u.Username, audit.ActionUpdate, k.Name+"_form", poKey, "Saved "+k.Title+" "+poKey, audit.ClientIP(r))
	response.JSON(w, map[string]interface{}{
		"success":        true,
		"lastModifiedBy": u.Name,
		"lastModifiedAt": now,
	})
}

// Load fetches the header and rows for (kind, poKey). A missing header
// yields {"exists": false}; stored nulls come back as empty strings.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request, kindName string) {
	k, ok := KindByName(kindName)
	if !ok {
		response.Err(w, "Unknown form kind", 404)
		return
	}
	if h.requireAccess(w, r, k) == nil {
		return
	}

	poKey := strings.TrimSpace(r.URL.Query().Get("poKey"))
	if poKey == "" {
		response.Err(w, "PO key required", 400)
		return
	}

	data, err := h.loadForm(k, poKey)
	if err != nil {
		response.Err(w, "Failed to load form", 500)
		return
	}
	if data == nil {
		response.JSON(w, map[string]bool{"exists": false})
		return
	}
	response.JSON(w, data)
}

// loadForm reads one form, or nil when no header matches.
func (h *Handler) loadForm(k Kind, poKey string) (*models.FormData, error) {
	data := &models.FormData{Exists: true, Rows: []models.FormRow{}}

	cols := `po_key, COALESCE(customer, ''), COALESCE(bid, ''), COALESCE(po, ''), COALESCE(cr, ''),
		COALESCE(record_no, ''), COALESCE(record_date, ''), COALESCE(last_modified_by, ''), COALESCE(last_modified_at, '')`
	var headerID int64
	var err error
	if k.HasAmendment {
		err = h.DB.QueryRow("SELECT id, "+cols+", COALESCE(amendment_details, '') FROM "+k.HeaderTable+" WHERE po_key = ?", poKey).
			Scan(&headerID, &data.PoKey, &data.Customer, &data.Bid, &data.PO, &data.CR,
				&data.RecordNo, &data.RecordDate, &data.LastModifiedBy, &data.LastModifiedAt, &data.AmendmentDetails)
	} else {
		err = h.DB.QueryRow("SELECT id, "+cols+" FROM "+k.HeaderTable+" WHERE po_key = ?", poKey).
			Scan(&headerID, &data.PoKey, &data.Customer, &data.Bid, &data.PO, &data.CR,
				&data.RecordNo, &data.RecordDate, &data.LastModifiedBy, &data.LastModifiedAt)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	selectCols := make([]string, len(k.rowColumns))
	for i, c := range k.rowColumns {
		selectCols[i] = "COALESCE(" + c + ", '')"
	}
	rows, err := h.DB.Query("SELECT "+strings.Join(selectCols, ", ")+" FROM "+k.RowTable+
		" WHERE form_id = ? ORDER BY id", headerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		row, err := k.scanRow(rows)
		if err != nil {
			return nil, err
		}
		data.Rows = append(data.Rows, row)
	}
	return data, rows.Err()
}
