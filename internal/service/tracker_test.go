package service

import (
	"context"
	"testing"
	"time"

	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/rules"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestTracker(t *testing.T) (*Tracker, *AuditService) {
	t.Helper()
	audit, err := NewAuditService(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewAuditService: %v", err)
	}
	t.Cleanup(audit.Close)
	return NewTracker(rules.NewLoader(nil), NewMemoryStateStore(), audit, nil), audit
}

func topstepAccount(id string) model.TrackedAccount {
	return model.TrackedAccount{
		ID:              id,
		Name:            "Combine " + id,
		Firm:            "topstep",
		AccountType:     "eval",
		StartingBalance: dec("50000"),
	}
}

func update(id string, equity, dailyPnL string) *SnapshotUpdate {
	return &SnapshotUpdate{
		AccountID: id,
		Timestamp: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		Equity:    dec(equity),
		Balance:   dec(equity),
		DailyPnL:  dec(dailyPnL),
	}
}

func TestTrackerRejectsUnknownAccount(t *testing.T) {
	tracker, _ := newTestTracker(t)
	if _, err := tracker.Ingest(context.Background(), update("ghost", "50000", "0")); err == nil {
		t.Fatal("expected error for untracked account")
	}
}

func TestTrackerRejectsDuplicateRegistration(t *testing.T) {
	tracker, _ := newTestTracker(t)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := tracker.Register(topstepAccount("a1")); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestTrackerHighWaterMarkOnlyMovesUp(t *testing.T) {
	tracker, _ := newTestTracker(t)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()

	if _, err := tracker.Ingest(ctx, update("a1", "51000", "1000")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	// Equity drops; the drawdown threshold must still trail the 51000 peak.
	result, err := tracker.Ingest(ctx, update("a1", "50200", "200"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	st := result.RuleStates["trailing_drawdown"]
	// Topstep: 4% of HWM 51000 -> min allowed 48960.
	if !st.Threshold.Equal(dec("48960")) {
		t.Fatalf("threshold = %s, want 48960 (HWM must not retreat)", st.Threshold)
	}
}

func TestTrackerPersistsAndServesLatest(t *testing.T) {
	tracker, _ := newTestTracker(t)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()

	want, err := tracker.Ingest(ctx, update("a1", "49500", "-500"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	got, err := tracker.Latest(ctx, "a1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != want {
		t.Fatal("Latest did not return the most recent evaluation")
	}

	hist, err := tracker.History(ctx, "a1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
}

func TestTrackerRecordsViolationEvents(t *testing.T) {
	tracker, audit := newTestTracker(t)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()

	// Daily loss straight through the $1000 limit.
	if _, err := tracker.Ingest(ctx, update("a1", "48900", "-1100")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	events, err := audit.List(ctx, "a1", string(model.EventViolation), 10, nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no violation event recorded")
	}
	found := false
	for _, ev := range events {
		if ev.RuleName == "daily_loss_limit" && ev.CurrentStatus == string(model.StatusViolated) {
			found = true
		}
	}
	if !found {
		t.Fatal("daily_loss_limit violation event missing")
	}
}

func TestTrackerNoDuplicateTransitionEvents(t *testing.T) {
	tracker, audit := newTestTracker(t)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := tracker.Ingest(ctx, update("a1", "48900", "-1100")); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	events, err := audit.List(ctx, "a1", string(model.EventViolation), 50, nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	count := 0
	for _, ev := range events {
		if ev.RuleName == "daily_loss_limit" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("violation events = %d, want 1 (steady state must not re-fire)", count)
	}
}

func TestTrackerGroupEvaluation(t *testing.T) {
	tracker, _ := newTestTracker(t)
	for _, id := range []string{"a1", "a2"} {
		if err := tracker.Register(topstepAccount(id)); err != nil {
			t.Fatalf("Register %s: %v", id, err)
		}
	}
	tracker.RegisterGroup(model.AccountGroup{
		ID:         "g1",
		Name:       "combine-desk",
		AccountIDs: []string{"a1", "a2"},
	})
	ctx := context.Background()

	if _, err := tracker.Ingest(ctx, update("a1", "50100", "100")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := tracker.Ingest(ctx, update("a2", "49050", "-950")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	eval, err := tracker.EvaluateGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("EvaluateGroup: %v", err)
	}
	if eval.OverallStatus != string(model.StatusCritical) {
		t.Fatalf("overall = %s, want critical (a2 used 95%% of daily loss)", eval.OverallStatus)
	}
	if eval.WeakestAccountID != "a2" {
		t.Fatalf("weakest = %s, want a2", eval.WeakestAccountID)
	}
}

func TestTrackerGroupDisconnectedBeforeFirstSnapshot(t *testing.T) {
	tracker, _ := newTestTracker(t)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tracker.RegisterGroup(model.AccountGroup{ID: "g1", Name: "cold", AccountIDs: []string{"a1"}})

	eval, err := tracker.EvaluateGroup(context.Background(), "g1")
	if err != nil {
		t.Fatalf("EvaluateGroup: %v", err)
	}
	if eval.OverallStatus != model.GroupStatusDisconnected {
		t.Fatalf("overall = %s, want disconnected", eval.OverallStatus)
	}
}

func TestTrackerGroupMarksStaleAccountsDisconnected(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.SetStaleAfter(30 * time.Second)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tracker.RegisterGroup(model.AccountGroup{ID: "g1", Name: "quiet", AccountIDs: []string{"a1"}})
	ctx := context.Background()

	if _, err := tracker.Ingest(ctx, update("a1", "50100", "100")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	eval, err := tracker.EvaluateGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("EvaluateGroup: %v", err)
	}
	if eval.OverallStatus == model.GroupStatusDisconnected {
		t.Fatal("fresh snapshot must not read as disconnected")
	}

	// Feed goes quiet for a minute.
	base := time.Now()
	tracker.now = func() time.Time { return base.Add(time.Minute) }

	eval, err = tracker.EvaluateGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("EvaluateGroup: %v", err)
	}
	if eval.OverallStatus != model.GroupStatusDisconnected {
		t.Fatalf("overall = %s, want disconnected after feed went stale", eval.OverallStatus)
	}
}

func TestTrackerDailyReset(t *testing.T) {
	tracker, audit := newTestTracker(t)
	if err := tracker.Register(topstepAccount("a1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()
	if _, err := tracker.Ingest(ctx, update("a1", "49400", "-600")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	tracker.ResetDaily("a1")

	events, err := audit.List(ctx, "a1", string(model.EventDailyReset), 10, nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("daily reset events = %d, want 1", len(events))
	}

	resetTime, timezone, ok := tracker.ResetRule("a1")
	if !ok || resetTime != "16:00" || timezone != "America/Chicago" {
		t.Fatalf("reset rule = %s %s %v, want 16:00 America/Chicago true", resetTime, timezone, ok)
	}
}
