package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/middleware"
	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/rules"
	"github.com/propgate/propgate/internal/service"
	"github.com/shopspring/decimal"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.Tracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracker := service.NewTracker(rules.NewLoader(nil), service.NewMemoryStateStore(), nil, nil)

	router := gin.New()
	router.Use(middleware.ErrorHandler())

	accounts := NewAccountHandler(tracker)
	groups := NewGroupHandler(tracker)
	rulesH := NewRulesHandler(rules.NewLoader(nil))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/accounts", accounts.List)
		v1.POST("/accounts", accounts.Register)
		v1.GET("/accounts/:id/state", accounts.State)
		v1.POST("/accounts/:id/snapshot", accounts.Snapshot)
		v1.GET("/groups/:id/risk", groups.Risk)
		v1.GET("/firms/:firm/:account_type", rulesH.Rules)
	}
	return router, tracker
}

func seedAccount(t *testing.T, tracker *service.Tracker, id string) {
	t.Helper()
	err := tracker.Register(model.TrackedAccount{
		ID:              id,
		Name:            "Account " + id,
		Firm:            "apex",
		AccountType:     "eval",
		StartingBalance: decimal.RequireFromString("50000"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestSnapshotIngestReturnsEvaluation(t *testing.T) {
	router, tracker := newTestRouter(t)
	seedAccount(t, tracker, "apex-1")

	body := `{
		"timestamp": "2026-03-02T14:00:00Z",
		"equity": "50750",
		"balance": "50750",
		"realized_pnl": "750",
		"daily_pnl": "750",
		"open_positions": []
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/apex-1/snapshot", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result model.RuleEvaluationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.AccountID != "apex-1" {
		t.Fatalf("account_id = %s, want apex-1", result.AccountID)
	}
	if _, ok := result.RuleStates["trailing_drawdown"]; !ok {
		t.Fatal("trailing_drawdown state missing from response")
	}
	if _, ok := result.MaxAllowedRisk["max_loss_allowed"]; !ok {
		t.Fatal("max_loss_allowed missing from response")
	}
}

func TestSnapshotUnknownAccountReturns404(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/ghost/snapshot", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStateBeforeFirstSnapshotReturns404(t *testing.T) {
	router, tracker := newTestRouter(t)
	seedAccount(t, tracker, "apex-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/apex-1/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRegisterAccountValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	// Unknown firm must map to 400, not 500.
	body := `{"id": "x1", "firm": "ftmo", "account_type": "eval", "starting_balance": "50000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestAccountListHidesProducerKeys(t *testing.T) {
	router, tracker := newTestRouter(t)
	err := tracker.Register(model.TrackedAccount{
		ID:              "secret-1",
		Name:            "Secret",
		Firm:            "topstep",
		AccountType:     "eval",
		StartingBalance: decimal.RequireFromString("50000"),
		APIKey:          "prod-key-do-not-leak",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "prod-key-do-not-leak") {
		t.Fatal("producer API key leaked through the list endpoint")
	}
}

func TestGroupRiskEndpoint(t *testing.T) {
	router, tracker := newTestRouter(t)
	seedAccount(t, tracker, "apex-1")
	tracker.RegisterGroup(model.AccountGroup{ID: "g1", Name: "desk", AccountIDs: []string{"apex-1"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/g1/risk", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var eval model.GroupRiskEvaluation
	if err := json.Unmarshal(rec.Body.Bytes(), &eval); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if eval.OverallStatus != model.GroupStatusDisconnected {
		t.Fatalf("overall_status = %s, want disconnected before first snapshot", eval.OverallStatus)
	}
}

func TestFirmRulesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/firms/topstep/eval", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var firmRules model.FirmRules
	if err := json.Unmarshal(rec.Body.Bytes(), &firmRules); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if firmRules.DailyLossLimit == nil || !firmRules.DailyLossLimit.MaxLossAmount.Equal(decimal.RequireFromString("1000")) {
		t.Fatal("topstep rules missing $1000 daily loss limit")
	}
}
