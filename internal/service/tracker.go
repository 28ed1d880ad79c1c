package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propgate/propgate/internal/engine"
	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/apperrors"
	"github.com/propgate/propgate/internal/pkg/logger"
	"github.com/propgate/propgate/internal/pkg/metrics"
	"github.com/propgate/propgate/internal/rules"
	"github.com/shopspring/decimal"
)

// Broadcaster pushes evaluation results to connected clients. Implemented by
// the websocket hub; a nil Broadcaster disables pushes.
type Broadcaster interface {
	BroadcastAccountState(accountID string, result *model.RuleEvaluationResult)
	BroadcastGroupRisk(eval *model.GroupRiskEvaluation)
}

// SnapshotUpdate is what snapshot producers (Tradovate bridge, NinjaTrader
// add-on, mock feed) send in. The tracker owns the high-water mark and the
// daily PnL history; producers never set those.
type SnapshotUpdate struct {
	AccountID     string                   `json:"account_id"`
	Timestamp     time.Time                `json:"timestamp"`
	Equity        decimal.Decimal          `json:"equity"`
	Balance       decimal.Decimal          `json:"balance"`
	RealizedPnL   decimal.Decimal          `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal          `json:"unrealized_pnl"`
	DailyPnL      decimal.Decimal          `json:"daily_pnl"`
	OpenPositions []model.PositionSnapshot `json:"open_positions"`
}

// accountState 单个账户的跟踪状态。
// All mutation goes through the per-account mutex: one writer per account.
type accountState struct {
	mu sync.Mutex

	account model.TrackedAccount
	rules   *model.FirmRules
	eng     *engine.Engine

	// High-water mark only ever moves up. The tracker, not the producer, is
	// the source of truth for it.
	hwm          decimal.Decimal
	dailyPnL     decimal.Decimal
	dailyHistory map[string]decimal.Decimal

	lastSeen time.Time
	latest   *model.RuleEvaluationResult
}

// Tracker 账户跟踪器：接收快照、驱动引擎评估、持久化并广播结果。
type Tracker struct {
	mu       sync.RWMutex
	accounts map[string]*accountState
	groups   map[string]*model.AccountGroup

	loader     *rules.Loader
	states     StateRepo
	audit      *AuditService
	broadcast  Broadcaster
	staleAfter time.Duration
	now        func() time.Time
}

func NewTracker(loader *rules.Loader, states StateRepo, audit *AuditService, broadcast Broadcaster) *Tracker {
	return &Tracker{
		accounts:  make(map[string]*accountState),
		groups:    make(map[string]*model.AccountGroup),
		loader:    loader,
		states:    states,
		audit:     audit,
		broadcast: broadcast,
		now:       time.Now,
	}
}

// SetStaleAfter sets the snapshot staleness cutoff. Accounts whose last
// snapshot is older than d are reported as disconnected in group views.
// Zero disables the check.
func (t *Tracker) SetStaleAfter(d time.Duration) {
	t.staleAfter = d
}

// Register adds an account and resolves its rule set. Called at startup for
// configured accounts and at runtime through the admin API.
func (t *Tracker) Register(account model.TrackedAccount) error {
	firmRules, err := t.loader.Get(account.Firm, account.AccountType, account.RuleVersion)
	if err != nil {
		return err
	}

	state := &accountState{
		account:      account,
		rules:        firmRules,
		eng:          engine.New(firmRules),
		hwm:          account.StartingBalance,
		dailyHistory: make(map[string]decimal.Decimal),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.accounts[account.ID]; exists {
		return apperrors.NewInvalidRequest(fmt.Sprintf("account already registered: %s", account.ID))
	}
	t.accounts[account.ID] = state
	logger.Info("account registered", "account_id", account.ID, "firm", account.Firm, "account_type", account.AccountType)
	return nil
}

func (t *Tracker) RegisterGroup(group model.AccountGroup) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g := group
	t.groups[group.ID] = &g
}

func (t *Tracker) Account(id string) (model.TrackedAccount, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.accounts[id]
	if !ok {
		return model.TrackedAccount{}, false
	}
	return state.account, true
}

func (t *Tracker) Accounts() []model.TrackedAccount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.TrackedAccount, 0, len(t.accounts))
	for _, s := range t.accounts {
		out = append(out, s.account)
	}
	return out
}

func (t *Tracker) Group(id string) (*model.AccountGroup, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.groups[id]
	return g, ok
}

func (t *Tracker) Groups() []*model.AccountGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*model.AccountGroup, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, g)
	}
	return out
}

// Ingest applies a producer snapshot to the account, evaluates all rules and
// persists and broadcasts the result.
func (t *Tracker) Ingest(ctx context.Context, upd *SnapshotUpdate) (*model.RuleEvaluationResult, error) {
	started := t.now()

	t.mu.RLock()
	state, ok := t.accounts[upd.AccountID]
	t.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("account not tracked: %s", upd.AccountID))
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	ts := upd.Timestamp
	if ts.IsZero() {
		ts = t.now().UTC()
	}

	// 1. Advance the high-water mark (up only)
	if upd.Equity.GreaterThan(state.hwm) {
		prev := state.hwm
		state.hwm = upd.Equity
		t.record(&model.RuleEvent{
			ID:        uuid.NewString(),
			AccountID: upd.AccountID,
			EventType: model.EventAccountUpdate,
			Message:   fmt.Sprintf("High-water mark raised: $%s -> $%s", prev.StringFixed(2), state.hwm.StringFixed(2)),
			Details: map[string]interface{}{
				"previous_hwm": prev.String(),
				"new_hwm":      state.hwm.String(),
			},
			CreatedAt: ts,
		})
	}

	// 2. Roll the daily PnL history
	state.dailyPnL = upd.DailyPnL
	day := ts.UTC().Format("2006-01-02")
	state.dailyHistory[day] = upd.DailyPnL

	// 3. Build the engine input
	snap := &model.AccountSnapshot{
		AccountID:       upd.AccountID,
		Timestamp:       ts,
		Equity:          upd.Equity,
		Balance:         upd.Balance,
		RealizedPnL:     upd.RealizedPnL,
		UnrealizedPnL:   upd.UnrealizedPnL,
		HighWaterMark:   state.hwm,
		DailyPnL:        state.dailyPnL,
		StartingBalance: state.account.StartingBalance,
		DailyPnLHistory: copyHistory(state.dailyHistory),
		OpenPositions:   upd.OpenPositions,
	}

	// 4. Evaluate
	result := state.eng.Evaluate(snap)

	// 5. Audit transitions against the previous result
	t.recordTransitions(state.latest, result)

	state.latest = result
	state.lastSeen = t.now()

	// 6. Persist
	if t.states != nil {
		if err := t.states.Insert(ctx, result); err != nil {
			logger.Error("failed to persist evaluation", "account_id", upd.AccountID, "error", err)
		}
	}

	metrics.EvaluationsTotal.WithLabelValues(string(result.OverallRiskLevel)).Inc()
	for name, st := range result.RuleStates {
		metrics.RuleStatusTotal.WithLabelValues(name, string(st.Status)).Inc()
	}
	metrics.EvaluationLatency.WithLabelValues(state.account.Firm).Observe(t.now().Sub(started).Seconds())

	// 7. Push
	if t.broadcast != nil {
		t.broadcast.BroadcastAccountState(upd.AccountID, result)
	}

	return result, nil
}

// Latest returns the most recent evaluation, falling back to the repository
// when the in-memory state is cold (e.g. right after a restart).
func (t *Tracker) Latest(ctx context.Context, accountID string) (*model.RuleEvaluationResult, error) {
	t.mu.RLock()
	state, ok := t.accounts[accountID]
	t.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("account not tracked: %s", accountID))
	}

	state.mu.Lock()
	latest := state.latest
	state.mu.Unlock()
	if latest != nil {
		return latest, nil
	}
	if t.states == nil {
		return nil, nil
	}
	return t.states.LatestByAccount(ctx, accountID)
}

func (t *Tracker) History(ctx context.Context, accountID string, limit int) ([]*model.RuleEvaluationResult, error) {
	if _, ok := t.Account(accountID); !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("account not tracked: %s", accountID))
	}
	if t.states == nil {
		return nil, nil
	}
	return t.states.History(ctx, accountID, limit)
}

// EvaluateGroup folds the latest state of every member into the group's
// weakest-account view.
func (t *Tracker) EvaluateGroup(ctx context.Context, groupID string) (*model.GroupRiskEvaluation, error) {
	group, ok := t.Group(groupID)
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("group not found: %s", groupID))
	}

	members := make([]engine.AccountResult, 0, len(group.AccountIDs))
	for _, accountID := range group.AccountIDs {
		name := accountID
		if acct, ok := t.Account(accountID); ok {
			name = acct.Name
		}
		result, err := t.Latest(ctx, accountID)
		if err != nil {
			// Unregistered or unreadable members count as disconnected, they
			// must not fail the whole group view.
			result = nil
		}
		if result != nil && t.isStale(accountID) {
			result = nil
		}
		members = append(members, engine.AccountResult{
			AccountID:   accountID,
			AccountName: name,
			Result:      result,
		})
	}

	eval := engine.EvaluateGroup(group, members, t.now().UTC())
	metrics.GroupEvaluationsTotal.WithLabelValues(eval.OverallStatus).Inc()
	if t.broadcast != nil {
		t.broadcast.BroadcastGroupRisk(eval)
	}
	return eval, nil
}

// isStale reports whether the account's feed has gone quiet past the
// configured cutoff.
func (t *Tracker) isStale(accountID string) bool {
	if t.staleAfter <= 0 {
		return false
	}
	t.mu.RLock()
	state, ok := t.accounts[accountID]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	state.mu.Lock()
	lastSeen := state.lastSeen
	state.mu.Unlock()
	return !lastSeen.IsZero() && t.now().Sub(lastSeen) > t.staleAfter
}

// ResetDaily zeroes the account's intraday counter. Called by the reset
// scheduler at the firm's reset time.
func (t *Tracker) ResetDaily(accountID string) {
	t.mu.RLock()
	state, ok := t.accounts[accountID]
	t.mu.RUnlock()
	if !ok {
		return
	}

	state.mu.Lock()
	previous := state.dailyPnL
	state.dailyPnL = decimal.Zero
	state.mu.Unlock()

	t.record(&model.RuleEvent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		EventType: model.EventDailyReset,
		Message:   "Daily counters reset",
		Details: map[string]interface{}{
			"previous_daily_pnl": previous.String(),
		},
		CreatedAt: t.now().UTC(),
	})
	logger.Info("daily reset applied", "account_id", accountID)
}

// ResetRule returns the daily-loss reset schedule for an account, if any.
func (t *Tracker) ResetRule(accountID string) (resetTime, timezone string, ok bool) {
	t.mu.RLock()
	state, found := t.accounts[accountID]
	t.mu.RUnlock()
	if !found || state.rules.DailyLossLimit == nil || !state.rules.DailyLossLimit.Enabled {
		return "", "", false
	}
	return state.rules.DailyLossLimit.ResetTime, state.rules.DailyLossLimit.Timezone, true
}

func (t *Tracker) recordTransitions(prev, curr *model.RuleEvaluationResult) {
	for name, st := range curr.RuleStates {
		var prevStatus model.RuleStatus
		if prev != nil {
			if p, ok := prev.RuleStates[name]; ok {
				prevStatus = p.Status
			}
		}
		if st.Status == prevStatus {
			continue
		}

		details := map[string]interface{}{
			"remaining_buffer": st.RemainingBuffer.String(),
			"buffer_percent":   st.BufferPercent.String(),
		}
		if len(st.Warnings) > 0 {
			details["warnings"] = st.Warnings
		}

		eventType := model.EventStateChange
		message := fmt.Sprintf("Rule %s: %s -> %s", name, orUnknown(prevStatus), st.Status)
		switch st.Status {
		case model.StatusViolated:
			eventType = model.EventViolation
			message = fmt.Sprintf("Rule %s VIOLATED", name)
		case model.StatusCaution, model.StatusCritical:
			eventType = model.EventWarning
		}

		t.record(&model.RuleEvent{
			ID:             uuid.NewString(),
			AccountID:      curr.AccountID,
			EventType:      eventType,
			RuleName:       name,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(st.Status),
			Message:        message,
			Details:        details,
			CreatedAt:      curr.Timestamp,
		})
	}
}

func (t *Tracker) record(event *model.RuleEvent) {
	if t.audit != nil {
		t.audit.Record(event)
	}
}

func orUnknown(s model.RuleStatus) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

func copyHistory(src map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
