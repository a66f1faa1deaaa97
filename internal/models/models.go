package models

// APIResponse is the envelope for list-style API payloads.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta carries pagination metadata.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// User is a full user record. The stored hash is only ever serialized
// inside backup documents, never in API responses.
type User struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	PasswordHash   string `json:"-"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	IsAdmin        bool   `json:"isAdmin"`
	LeadFormAccess bool   `json:"leadFormAccess"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// SessionUser is the request-scoped identity resolved from a session cookie.
type SessionUser struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	IsAdmin        bool   `json:"isAdmin"`
	LeadFormAccess bool   `json:"leadFormAccess"`
}

// PurchaseOrder is a master-list entry. po_key values in the form tables
// are free text derived from these fields, not foreign keys.
type PurchaseOrder struct {
	ID        int    `json:"id"`
	Customer  string `json:"customer"`
	Bid       string `json:"bid"`
	PO        string `json:"po"`
	CR        string `json:"cr"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FormRow is one line item of a form. Which fields are meaningful depends
// on the form kind: cr uses Cycles, ped adds Notes, lead uses the three
// date/lead-time fields. Cycles and Notes keep their submitted order and
// empty slots verbatim.
type FormRow struct {
	ItemNo               string   `json:"itemNo"`
	PartNumber           string   `json:"partNumber"`
	PartDescription      string   `json:"partDescription"`
	Rev                  string   `json:"rev"`
	Qty                  string   `json:"qty"`
	Cycles               []string `json:"cycles,omitempty"`
	Notes                []string `json:"notes,omitempty"`
	CustomerRequiredDate string   `json:"customerRequiredDate,omitempty"`
	StandardLeadTime     string   `json:"standardLeadTime,omitempty"`
	GtnAgreedDate        string   `json:"gtnAgreedDate,omitempty"`
	Remarks              string   `json:"remarks"`
}

// FormData is a full form: header fields plus rows in insertion order.
type FormData struct {
	Exists           bool      `json:"exists"`
	PoKey            string    `json:"poKey"`
	Customer         string    `json:"customer"`
	Bid              string    `json:"bid"`
	PO               string    `json:"po"`
	CR               string    `json:"cr"`
	RecordNo         string    `json:"recordNo"`
	RecordDate       string    `json:"recordDate"`
	AmendmentDetails string    `json:"amendmentDetails,omitempty"`
	LastModifiedBy   string    `json:"lastModifiedBy"`
	LastModifiedAt   string    `json:"lastModifiedAt"`
	Rows             []FormRow `json:"rows"`
}

// BackupMeta identifies who produced a backup document and when.
type BackupMeta struct {
	App        string `json:"app"`
	Version    string `json:"version"`
	ExportedAt string `json:"exportedAt"`
	By         string `json:"by"`
}

// BackupUser is a user entry inside a backup document. Unlike User it
// carries the password hash so restores round-trip credentials.
type BackupUser struct {
	Username       string `json:"username"`
	PasswordHash   string `json:"password_hash"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	IsAdmin        bool   `json:"isAdmin"`
	LeadFormAccess bool   `json:"leadFormAccess"`
}

// BackupPO is a purchase-order entry inside a backup document.
type BackupPO struct {
	Customer string `json:"customer"`
	Bid      string `json:"bid"`
	PO       string `json:"po"`
	CR       string `json:"cr"`
}

// BackupDocument is the transportable users+pos snapshot.
type BackupDocument struct {
	Meta  BackupMeta   `json:"meta"`
	Users []BackupUser `json:"users"`
	POs   []BackupPO   `json:"pos"`
}

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	IPAddress string `json:"ip_address"`
	CreatedAt string `json:"created_at"`
}
