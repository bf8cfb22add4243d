package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicsync-engine/controllers"
	"civicsync-engine/engine"
	"civicsync-engine/models"
	"civicsync-engine/payments"
	"civicsync-engine/routes"
	"civicsync-engine/store"
	authUtils "civicsync-engine/utils"

	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret"

var (
	citizen  = models.Actor{UserID: "citizen-1", Name: "Ana", Email: "ana@example.com", Role: models.RoleCitizen}
	neighbor = models.Actor{UserID: "citizen-2", Name: "Ben", Email: "ben@example.com", Role: models.RoleCitizen}
	admin    = models.Actor{UserID: "admin-1", Name: "Ada", Role: models.RoleAdmin}
	system   = models.SystemActor
)

type testServer struct {
	router   *gin.Engine
	staff    *store.MemoryStaffDirectory
	accounts *store.MemoryAccounts
	ledger   *store.MemoryPaymentLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issues := store.NewMemoryIssueStore()
	staff := store.NewMemoryStaffDirectory()
	accounts := store.NewMemoryAccounts()
	sessions := store.NewMemorySessionStore()
	ledger := store.NewMemoryPaymentLedger()
	provider := payments.NewHostedCheckout("https://pay.example")

	svc := engine.NewService(engine.Deps{
		Issues:   issues,
		Staff:    staff,
		Accounts: accounts,
		Sessions: sessions,
		Ledger:   ledger,
		Payments: provider,
	}, engine.Config{BoostPriceCents: 10000, BoostCurrency: "usd", BoostSessionTTL: time.Hour})

	router := routes.NewRouter(routes.Deps{
		Issues: controllers.NewIssueController(svc, staff),
		Staff:  controllers.NewStaffController(staff),
		Auth:   controllers.NewAuthController(accounts, testSecret, false, ""),
		Users: controllers.NewUserController(accounts, sessions, provider, ledger, controllers.Subscription{
			PriceCents: 100000, Currency: "usd", SessionTTL: time.Hour,
		}),
		Payments:  controllers.NewPaymentController(ledger, "usd"),
		JWTSecret: testSecret,
	})
	return &testServer{router: router, staff: staff, accounts: accounts, ledger: ledger}
}

func token(t *testing.T, actor models.Actor) string {
	t.Helper()
	tok, err := authUtils.GenerateToken(actor, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

// do sends a JSON request as actor (nil for anonymous) and decodes the
// response body into a map.
func (s *testServer) do(t *testing.T, method, path string, actor *models.Actor, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *actor))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) createIssue(t *testing.T, by models.Actor, title string) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/issues", &by, map[string]any{
		"title":       title,
		"description": "Needs attention",
		"category":    "Road",
		"location":    "Main St",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create issue: %d %s", w.Code, w.Body.String())
	}
	return body["id"].(string)
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/ping", nil, nil)
	if w.Code != http.StatusOK || body["message"] != "pong" {
		t.Errorf("ping = %d %v", w.Code, body)
	}
}

func TestCreateIssueRequiresCitizen(t *testing.T) {
	s := newTestServer(t)
	payload := map[string]any{"title": "t", "description": "d", "category": "Road"}

	if w, _ := s.do(t, http.MethodPost, "/issues", nil, payload); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create = %d, want 401", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/issues", &admin, payload); w.Code != http.StatusForbidden {
		t.Errorf("admin create = %d, want 403", w.Code)
	}

	w, body := s.do(t, http.MethodPost, "/issues", &citizen, map[string]any{"title": "t", "description": "d", "category": "Volcano"})
	if w.Code != http.StatusBadRequest || body["kind"] != string(engine.KindValidation) {
		t.Errorf("bad category = %d %v, want 400 ValidationError", w.Code, body)
	}

	w, body = s.do(t, http.MethodPost, "/issues", &citizen, payload)
	if w.Code != http.StatusCreated || body["status"] != string(models.Pending) {
		t.Errorf("create = %d %v", w.Code, body)
	}
}

func TestStatusChangeErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.createIssue(t, citizen, "Pothole")

	w, _ := s.do(t, http.MethodPatch, "/issues/"+id+"/status", &citizen, map[string]any{"newStatus": "Working", "comment": "x"})
	if w.Code != http.StatusForbidden {
		t.Errorf("citizen status change = %d, want 403", w.Code)
	}

	w, body := s.do(t, http.MethodPatch, "/issues/"+id+"/status", &admin, map[string]any{"newStatus": "Resolved", "comment": "done"})
	if w.Code != http.StatusConflict {
		t.Fatalf("skip to Resolved = %d, want 409", w.Code)
	}
	if body["kind"] != string(engine.KindInvalidTransition) || body["current"] != "Pending" || body["requested"] != "Resolved" {
		t.Errorf("transition error body = %v", body)
	}
	if body["retryable"] != false {
		t.Errorf("invalid transition must not be retryable")
	}

	w, _ = s.do(t, http.MethodPatch, "/issues/000000000000000000000000/status", &admin, map[string]any{"newStatus": "Working", "comment": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing issue = %d, want 404", w.Code)
	}
}

func TestAssignAndWorkIssue(t *testing.T) {
	s := newTestServer(t)
	id := s.createIssue(t, citizen, "Broken light")
	staff, _ := s.staff.AddStaff(t.Context(), &models.Staff{Name: "Sam", Email: "sam@city.gov", UserID: "staff-sam"})
	sam := models.Actor{UserID: "staff-sam", Name: "Sam", Role: models.RoleStaff}

	w, body := s.do(t, http.MethodPatch, "/issues/"+id+"/assign-staff", &admin, map[string]any{"staffId": staff.ID.Hex()})
	if w.Code != http.StatusOK || body["status"] != "In Progress" {
		t.Fatalf("assign = %d %v", w.Code, body)
	}
	w, body = s.do(t, http.MethodPatch, "/issues/"+id+"/assign-staff", &admin, map[string]any{"staffId": staff.ID.Hex()})
	if w.Code != http.StatusConflict || body["kind"] != string(engine.KindAlreadyAssigned) {
		t.Errorf("second assign = %d %v, want 409 AlreadyAssigned", w.Code, body)
	}

	w, body = s.do(t, http.MethodPatch, "/issues/"+id+"/status", &sam, map[string]any{"newStatus": "working", "comment": "crew on site"})
	if w.Code != http.StatusOK || body["status"] != "Working" {
		t.Errorf("status = %d %v", w.Code, body)
	}

	w, body = s.do(t, http.MethodGet, "/issues/"+id, &sam, nil)
	if next, _ := body["nextStatuses"].([]any); len(next) != 2 {
		t.Errorf("nextStatuses from Working = %v, want 2 entries", body["nextStatuses"])
	}

	w, body = s.do(t, http.MethodGet, "/issues/assigned", &sam, nil)
	if w.Code != http.StatusOK || body["totalIssues"] != float64(1) {
		t.Errorf("assigned = %d %v", w.Code, body)
	}
}

func TestUpvoteEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createIssue(t, citizen, "Pothole")

	w, body := s.do(t, http.MethodPatch, "/issues/"+id+"/upvote", &citizen, nil)
	if w.Code != http.StatusForbidden || body["kind"] != string(engine.KindSelfUpvoteForbidden) {
		t.Errorf("self upvote = %d %v", w.Code, body)
	}
	w, body = s.do(t, http.MethodPatch, "/issues/"+id+"/upvote", &neighbor, map[string]any{"userId": neighbor.UserID})
	if w.Code != http.StatusOK || body["upvotes"] != float64(1) {
		t.Errorf("upvote = %d %v", w.Code, body)
	}
	w, body = s.do(t, http.MethodPatch, "/issues/"+id+"/upvote", &neighbor, nil)
	if w.Code != http.StatusConflict || body["kind"] != string(engine.KindAlreadyUpvoted) {
		t.Errorf("repeat upvote = %d %v", w.Code, body)
	}
	if _, view := s.do(t, http.MethodGet, "/issues/"+id, &neighbor, nil); view["userHasUpvoted"] != true {
		t.Errorf("userHasUpvoted = %v, want true", view["userHasUpvoted"])
	}
	w, _ = s.do(t, http.MethodPatch, "/issues/"+id+"/upvote", &neighbor, map[string]any{"userId": "someone-else"})
	if w.Code != http.StatusForbidden {
		t.Errorf("upvote on behalf of another user = %d, want 403", w.Code)
	}
}

func TestBoostFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createIssue(t, citizen, "Dark underpass")

	if w, _ := s.do(t, http.MethodPost, "/issues/"+id+"/boost-session", &neighbor, nil); w.Code != http.StatusForbidden {
		t.Errorf("non-reporter boost session = %d, want 403", w.Code)
	}
	w, checkout := s.do(t, http.MethodPost, "/issues/"+id+"/boost-session", &citizen, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("boost session = %d %s", w.Code, w.Body.String())
	}
	sessionID, _ := checkout["sessionId"].(string)
	if sessionID == "" || checkout["url"] == "" {
		t.Fatalf("checkout = %v", checkout)
	}

	confirm := map[string]any{"sessionId": sessionID}
	if w, _ := s.do(t, http.MethodPatch, "/issues/"+id+"/boost", &citizen, confirm); w.Code != http.StatusForbidden {
		t.Errorf("citizen calling the webhook = %d, want 403", w.Code)
	}
	w, body := s.do(t, http.MethodPatch, "/issues/"+id+"/boost", &system, confirm)
	if w.Code != http.StatusOK || body["boosted"] != true || body["priority"] != "High" {
		t.Fatalf("confirm = %d %v", w.Code, body)
	}
	w, again := s.do(t, http.MethodPatch, "/issues/"+id+"/boost", &system, confirm)
	if w.Code != http.StatusOK || again["version"] != body["version"] {
		t.Errorf("redelivered confirm = %d version %v, want unchanged %v", w.Code, again["version"], body["version"])
	}

	w, totals := s.do(t, http.MethodGet, "/payments/total", &admin, nil)
	if w.Code != http.StatusOK || totals["total"] != float64(10000) || totals["count"] != float64(1) {
		t.Errorf("payments total = %d %v", w.Code, totals)
	}
}

func TestListIssuesResponse(t *testing.T) {
	s := newTestServer(t)
	for _, title := range []string{"one", "two", "three"} {
		s.createIssue(t, citizen, title)
	}

	w, body := s.do(t, http.MethodGet, "/issues?limit=2&page=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
	if body["totalIssues"] != float64(3) || body["totalPages"] != float64(2) || body["currentPage"] != float64(2) {
		t.Errorf("pagination = %v", body)
	}
	if issues, _ := body["issues"].([]any); len(issues) != 1 {
		t.Errorf("page 2 has %d issues, want 1", len(issues))
	}

	if w, _ := s.do(t, http.MethodGet, "/issues?limit=500", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("limit=500 = %d, want 400", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/issues?status=Archived", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", w.Code)
	}
}

func TestDeleteIssueEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createIssue(t, citizen, "Litter")

	if w, _ := s.do(t, http.MethodDelete, "/issues/"+id, &neighbor, nil); w.Code != http.StatusForbidden {
		t.Errorf("non-reporter delete = %d, want 403", w.Code)
	}
	if w, _ := s.do(t, http.MethodDelete, "/issues/"+id, &citizen, nil); w.Code != http.StatusOK {
		t.Errorf("delete = %d, want 200", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/issues/"+id, nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}
