package admin

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"gtncr/internal/auth"
	"gtncr/internal/models"
	"gtncr/internal/testutil"
)

func TestListUsersRequiresAdmin(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()

	w := httptest.NewRecorder()
	h.ListUsers(w, testutil.AuthedRequest("GET", "/api/users", nil, ""))
	testutil.AssertStatus(t, w, 401)

	token := testutil.LoginUser(t, h.DB, "viewer")
	w = httptest.NewRecorder()
	h.ListUsers(w, testutil.AuthedRequest("GET", "/api/users", nil, token))
	testutil.AssertStatus(t, w, 403)
}

func TestListUsersOmitsHashes(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	testutil.CreateTestUser(t, h.DB, "alice", "pw", false, true)
	token := testutil.LoginAdmin(t, h.DB)

	w := httptest.NewRecorder()
	h.ListUsers(w, testutil.AuthedRequest("GET", "/api/users", nil, token))
	testutil.AssertStatus(t, w, 200)

	var users []models.User
	testutil.DecodeEnvelope(t, w, &users)
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].Username != "admin" || users[1].Username != "alice" {
		t.Errorf("Expected id order, got %s, %s", users[0].Username, users[1].Username)
	}
	if !users[1].LeadFormAccess {
		t.Error("Expected alice to have lead form access")
	}
	if body := w.Body.String(); strings.Contains(body, "password_hash") || strings.Contains(body, "$2a$") {
		t.Error("User listing must not expose password hashes")
	}
}

func TestCreateUser(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	req := testutil.AuthedJSONRequest(t, "POST", "/api/users", CreateUserRequest{
		Username:       "bob",
		Password:       "secret",
		Name:           "Bob Tan",
		Department:     "quality",
		LeadFormAccess: true,
	}, token)
	w := httptest.NewRecorder()
	h.CreateUser(w, req)
	testutil.AssertStatus(t, w, 201)

	var hash string
	var isAdmin, lead int
	err := h.DB.QueryRow("SELECT password_hash, is_admin, lead_form_access FROM users WHERE username = 'bob'").
		Scan(&hash, &isAdmin, &lead)
	if err != nil {
		t.Fatalf("Created user not found: %v", err)
	}
	if !auth.CheckPassword(hash, "secret") {
		t.Error("Stored hash should verify against the submitted password")
	}
	if isAdmin != 0 || lead != 1 {
		t.Errorf("Expected is_admin=0 lead_form_access=1, got %d/%d", isAdmin, lead)
	}
}

func TestCreateUserValidation(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	cases := []CreateUserRequest{
		{Username: "", Password: "pw", Name: "N", Department: "d"},
		{Username: "x", Password: "", Name: "N", Department: "d"},
		{Username: "x", Password: "pw", Name: "  ", Department: "d"},
		{Username: "x", Password: "pw", Name: "N", Department: ""},
	}
	for i, c := range cases {
		w := httptest.NewRecorder()
		h.CreateUser(w, testutil.AuthedJSONRequest(t, "POST", "/api/users", c, token))
		if w.Code != 400 {
			t.Errorf("Case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	body := CreateUserRequest{Username: "carol", Password: "pw", Name: "Carol", Department: "sales"}
	w := httptest.NewRecorder()
	h.CreateUser(w, testutil.AuthedJSONRequest(t, "POST", "/api/users", body, token))
	testutil.AssertStatus(t, w, 201)

	w = httptest.NewRecorder()
	h.CreateUser(w, testutil.AuthedJSONRequest(t, "POST", "/api/users", body, token))
	testutil.AssertStatus(t, w, 409)
}

func TestUpdateUser(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)
	id := testutil.CreateTestUser(t, h.DB, "dave", "oldpw", false, false)

	req := testutil.AuthedJSONRequest(t, "PUT", "/api/users/"+strconv.Itoa(id), UpdateUserRequest{
		Name:           "Dave Lim",
		Department:     "planning",
		Password:       "newpw",
		LeadFormAccess: true,
	}, token)
	w := httptest.NewRecorder()
	h.UpdateUser(w, req, strconv.Itoa(id))
	testutil.AssertStatus(t, w, 200)

	var name, dept, hash string
	var lead int
	h.DB.QueryRow("SELECT name, department, password_hash, lead_form_access FROM users WHERE id = ?", id).
		Scan(&name, &dept, &hash, &lead)
	if name != "Dave Lim" || dept != "planning" || lead != 1 {
		t.Errorf("Update not applied: %s/%s/%d", name, dept, lead)
	}
	if !auth.CheckPassword(hash, "newpw") {
		t.Error("Password should have been rehashed")
	}
}

func TestUpdateUserKeepsPasswordWhenEmpty(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)
	id := testutil.CreateTestUser(t, h.DB, "erin", "keepme", false, false)

	req := testutil.AuthedJSONRequest(t, "PUT", "/api/users/"+strconv.Itoa(id), UpdateUserRequest{
		Name:       "Erin",
		Department: "stores",
	}, token)
	w := httptest.NewRecorder()
	h.UpdateUser(w, req, strconv.Itoa(id))
	testutil.AssertStatus(t, w, 200)

	var hash string
	h.DB.QueryRow("SELECT password_hash FROM users WHERE id = ?", id).Scan(&hash)
	if !auth.CheckPassword(hash, "keepme") {
		t.Error("Empty password in update must leave the stored hash alone")
	}
}

func TestUpdateUserFailedHashLeavesUserUntouched(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)
	id := testutil.CreateTestUser(t, h.DB, "helen", "oldpw", true, true)

	// bcrypt refuses passwords over 72 bytes, so this update must fail
	// without applying any of the other fields.
	req := testutil.AuthedJSONRequest(t, "PUT", "/api/users/"+strconv.Itoa(id), UpdateUserRequest{
		Name:       "Changed Name",
		Department: "changed",
		Password:   strings.Repeat("x", 100),
		IsAdmin:    false,
	}, token)
	w := httptest.NewRecorder()
	h.UpdateUser(w, req, strconv.Itoa(id))
	testutil.AssertStatus(t, w, 500)

	var name, dept, hash string
	var isAdmin, lead int
	h.DB.QueryRow("SELECT name, department, password_hash, is_admin, lead_form_access FROM users WHERE id = ?", id).
		Scan(&name, &dept, &hash, &isAdmin, &lead)
	if name != "helen Display" || dept != "engineering" || isAdmin != 1 || lead != 1 {
		t.Errorf("Failed update must not change any field, got %s/%s/%d/%d", name, dept, isAdmin, lead)
	}
	if !auth.CheckPassword(hash, "oldpw") {
		t.Error("Failed update must not change the password")
	}
}

func TestCannotDemoteLastAdmin(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	var adminID int
	h.DB.QueryRow("SELECT id FROM users WHERE username = 'admin'").Scan(&adminID)

	req := testutil.AuthedJSONRequest(t, "PUT", "/api/users/"+strconv.Itoa(adminID), UpdateUserRequest{
		Name:       "IT Administrator",
		Department: "it",
		IsAdmin:    false,
	}, token)
	w := httptest.NewRecorder()
	h.UpdateUser(w, req, strconv.Itoa(adminID))
	testutil.AssertStatus(t, w, 400)

	var isAdmin int
	h.DB.QueryRow("SELECT is_admin FROM users WHERE id = ?", adminID).Scan(&isAdmin)
	if isAdmin != 1 {
		t.Error("Refused demotion must not change the stored flag")
	}
}

func TestDemoteAdminWithAnotherAdminPresent(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)
	secondID := testutil.CreateTestUser(t, h.DB, "admin2", "pw", true, false)

	req := testutil.AuthedJSONRequest(t, "PUT", "/api/users/"+strconv.Itoa(secondID), UpdateUserRequest{
		Name:       "Second Admin",
		Department: "it",
		IsAdmin:    false,
	}, token)
	w := httptest.NewRecorder()
	h.UpdateUser(w, req, strconv.Itoa(secondID))
	testutil.AssertStatus(t, w, 200)
}

func TestCannotDeleteBootstrapAdmin(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)
	// Even with a second admin, the seeded account stays.
	testutil.CreateTestUser(t, h.DB, "admin2", "pw", true, false)

	var adminID int
	h.DB.QueryRow("SELECT id FROM users WHERE username = 'admin'").Scan(&adminID)

	w := httptest.NewRecorder()
	h.DeleteUser(w, testutil.AuthedRequest("DELETE", "/api/users/"+strconv.Itoa(adminID), nil, token), strconv.Itoa(adminID))
	testutil.AssertStatus(t, w, 400)
}

func TestCannotDeleteLastAdmin(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	// Swap the bootstrap admin for a different sole admin so only the
	// last-admin rule can trip.
	soleID := testutil.CreateTestUser(t, h.DB, "solo", "pw", true, false)
	h.DB.Exec("UPDATE users SET is_admin = 0 WHERE username = 'admin'")

	w := httptest.NewRecorder()
	h.DeleteUser(w, testutil.AuthedRequest("DELETE", "/api/users/"+strconv.Itoa(soleID), nil, token), strconv.Itoa(soleID))
	testutil.AssertStatus(t, w, 400)
}

func TestDeleteUserDropsSessions(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	adminToken := testutil.LoginAdmin(t, h.DB)

	id := testutil.CreateTestUser(t, h.DB, "frank", "pw", false, false)
	userToken := testutil.CreateTestSession(t, h.DB, id)

	w := httptest.NewRecorder()
	h.DeleteUser(w, testutil.AuthedRequest("DELETE", "/api/users/"+strconv.Itoa(id), nil, adminToken), strconv.Itoa(id))
	testutil.AssertStatus(t, w, 200)

	if auth.UserByToken(h.DB, userToken) != nil {
		t.Error("Deleted user's sessions should be invalidated")
	}
}

func TestDeleteUserNotFound(t *testing.T) {
	h := newTestHandler(t)
	defer h.DB.Close()
	token := testutil.LoginAdmin(t, h.DB)

	w := httptest.NewRecorder()
	h.DeleteUser(w, testutil.AuthedRequest("DELETE", "/api/users/9999", nil, token), "9999")
	testutil.AssertStatus(t, w, 404)
}
