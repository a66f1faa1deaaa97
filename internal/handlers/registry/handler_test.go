package registry

import (
	"net/http/httptest"
	"strconv"
	"testing"

	"gtncr/internal/models"
	"gtncr/internal/testutil"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return &Handler{DB: testutil.SetupTestDB(t)}
}

func TestListRequiresSession(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()

	w := httptest.NewRecorder()
	h.List(w, testutil.AuthedRequest("GET", "/api/pos", nil, ""))
	testutil.AssertStatus(t, w, 401)
}

func TestListVisibleToNonAdmins(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	h.DB.Exec("INSERT INTO pos (customer, bid, po, cr) VALUES ('ACME', 'B-1', 'PO-1', 'CR-1')")
	h.DB.Exec("INSERT INTO pos (customer, bid, po, cr) VALUES ('Globex', 'B-2', 'PO-2', 'CR-2')")
	token := testutil.LoginUser(t, h.DB, "viewer")

	w := httptest.NewRecorder()
	h.List(w, testutil.AuthedRequest("GET", "/api/pos", nil, token))
	testutil.AssertStatus(t, w, 200)

	var pos []models.PurchaseOrder
	testutil.DecodeEnvelope(t, w, &pos)
	if len(pos) != 2 {
		t.Fatalf("Expected 2 POs, got %d", len(pos))
	}
	// Newest first.
	if pos[0].PO != "PO-2" || pos[1].PO != "PO-1" {
		t.Errorf("Unexpected order: %s, %s", pos[0].PO, pos[1].PO)
	}
}

func TestCreateRequiresAdmin(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginUser(t, h.DB, "viewer")

	req := testutil.AuthedJSONRequest(t, "POST", "/api/pos", PORequest{
		Customer: "ACME", Bid: "B-1", PO: "PO-1", CR: "CR-1",
	}, token)
	w := httptest.NewRecorder()
	h.Create(w, req)
	testutil.AssertStatus(t, w, 403)
}

func TestCreatePO(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	req := testutil.AuthedJSONRequest(t, "POST", "/api/pos", PORequest{
		Customer: "  ACME  ", Bid: "B-1", PO: "PO-1", CR: "CR-1",
	}, token)
	w := httptest.NewRecorder()
	h.Create(w, req)
	testutil.AssertStatus(t, w, 201)

	var customer string
	h.DB.QueryRow("SELECT customer FROM pos").Scan(&customer)
	if customer != "ACME" {
		t.Errorf("Expected trimmed customer, got %q", customer)
	}
}

func TestCreatePOValidation(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	cases := []PORequest{
		{Customer: "", Bid: "B", PO: "P", CR: "C"},
		{Customer: "A", Bid: "  ", PO: "P", CR: "C"},
		{Customer: "A", Bid: "B", PO: "", CR: "C"},
		{Customer: "A", Bid: "B", PO: "P", CR: ""},
	}
	for i, c := range cases {
		w := httptest.NewRecorder()
		h.Create(w, testutil.AuthedJSONRequest(t, "POST", "/api/pos", c, token))
		if w.Code != 400 {
			t.Errorf("Case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestUpdatePO(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)
	res, _ := h.DB.Exec("INSERT INTO pos (customer, bid, po, cr) VALUES ('ACME', 'B-1', 'PO-1', 'CR-1')")
	id64, _ := res.LastInsertId()
	id := strconv.FormatInt(id64, 10)

	req := testutil.AuthedJSONRequest(t, "PUT", "/api/pos/"+id, PORequest{
		Customer: "ACME", Bid: "B-1", PO: "PO-1", CR: "CR-2",
	}, token)
	w := httptest.NewRecorder()
	h.Update(w, req, id)
	testutil.AssertStatus(t, w, 200)

	var cr string
	h.DB.QueryRow("SELECT cr FROM pos WHERE id = ?", id64).Scan(&cr)
	if cr != "CR-2" {
		t.Errorf("Expected CR-2, got %q", cr)
	}
}

func TestUpdatePONotFound(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	req := testutil.AuthedJSONRequest(t, "PUT", "/api/pos/424242", PORequest{
		Customer: "A", Bid: "B", PO: "P", CR: "C",
	}, token)
	w := httptest.NewRecorder()
	h.Update(w, req, "424242")
	testutil.AssertStatus(t, w, 404)
}

func TestDeletePO(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)
	res, _ := h.DB.Exec("INSERT INTO pos (customer, bid, po, cr) VALUES ('ACME', 'B-1', 'PO-1', 'CR-1')")
	id64, _ := res.LastInsertId()
	id := strconv.FormatInt(id64, 10)

	w := httptest.NewRecorder()
	h.Delete(w, testutil.AuthedRequest("DELETE", "/api/pos/"+id, nil, token), id)
	testutil.AssertStatus(t, w, 200)

	var count int
	h.DB.QueryRow("SELECT COUNT(*) FROM pos").Scan(&count)
	if count != 0 {
		t.Errorf("Expected PO to be gone, %d remain", count)
	}

	w = httptest.NewRecorder()
	h.Delete(w, testutil.AuthedRequest("DELETE", "/api/pos/"+id, nil, token), id)
	testutil.AssertStatus(t, w, 404)
}
