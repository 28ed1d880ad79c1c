// Package engine implements the rule compliance evaluation core: a pure,
// deterministic function of (account snapshot, firm rule configuration) that
// produces per-rule states, remaining buffers and an aggregated risk level.
//
// The engine holds no mutable state and performs no I/O; it is safe to call
// concurrently for any number of accounts. The only wall-clock dependency is
// the trading-hours rule, which reads time through the injectable clock.
package engine

import (
	"time"

	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/logger"
	"github.com/shopspring/decimal"
)

// Rule names as they appear in RuleEvaluationResult.RuleStates. These are
// wire-frozen: downstream consumers key on them.
const (
	RuleTrailingDrawdown   = "trailing_drawdown"
	RuleDailyLossLimit     = "daily_loss_limit"
	RuleOverallMaxLoss     = "overall_max_loss"
	RuleMaxPositionSize    = "max_position_size"
	RuleMAE                = "mae"
	RuleConsistency        = "consistency"
	RuleTradingHours       = "trading_hours"
	RuleMinimumTradingDays = "minimum_trading_days"
	RuleProfitTarget       = "profit_target"
)

// Risk metric keys in RuleEvaluationResult.MaxAllowedRisk.
const (
	MetricMaxLossAllowed      = "max_loss_allowed"
	MetricMaxContractsAllowed = "max_contracts_allowed"
)

var (
	d100 = decimal.NewFromInt(100)

	// Per-rule status cut points. These are intentionally NOT unified into
	// one generic threshold function: the bands differ per rule (80/95%,
	// 5/20%, 40/45%, 10/30%) and each calculator spells out its own chain.
	frac05 = decimal.RequireFromString("0.05")
	frac20 = decimal.RequireFromString("0.20")
	frac80 = decimal.RequireFromString("0.80")
	frac95 = decimal.RequireFromString("0.95")

	pct10 = decimal.NewFromInt(10)
	pct30 = decimal.NewFromInt(30)
	pct40 = decimal.NewFromInt(40)
	pct45 = decimal.NewFromInt(45)
	pct70 = decimal.NewFromInt(70)
	pct90 = decimal.NewFromInt(90)
)

const recoveryNone = "Cannot recover - account fails immediately"

// Engine 规则引擎。一个实例绑定一套 FirmRules，可被并发复用。
type Engine struct {
	rules *model.FirmRules
	now   func() time.Time
}

func New(rules *model.FirmRules) *Engine {
	return &Engine{rules: rules, now: time.Now}
}

// NewWithClock injects the clock used by the trading-hours rule. Every other
// rule is a pure function of the snapshot; tests pin the clock here.
func NewWithClock(rules *model.FirmRules, now func() time.Time) *Engine {
	return &Engine{rules: rules, now: now}
}

// Evaluate 对一份账户快照执行全部启用规则的评估。
// This is the primary entry point; the result is a fresh value object and the
// snapshot is never mutated.
func (e *Engine) Evaluate(snap *model.AccountSnapshot) *model.RuleEvaluationResult {
	states := e.ruleStates(snap)

	return &model.RuleEvaluationResult{
		AccountID:        snap.AccountID,
		Timestamp:        snap.Timestamp,
		RuleStates:       states,
		MaxAllowedRisk:   maxAllowedRisk(states),
		OverallRiskLevel: overallRiskLevel(states),
	}
}

// ruleStates runs every enabled calculator. A fault inside one calculator
// must not take down the others, so each runs behind a recover barrier.
func (e *Engine) ruleStates(snap *model.AccountSnapshot) map[string]model.RuleState {
	states := make(map[string]model.RuleState)

	run := func(name string, calc func(*model.AccountSnapshot) model.RuleState) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("rule calculator panicked", "rule", name, "account_id", snap.AccountID, "panic", r)
			}
		}()
		states[name] = calc(snap)
	}

	if r := e.rules.TrailingDrawdown; r != nil && r.Enabled {
		run(RuleTrailingDrawdown, e.trailingDrawdown)
	}
	if r := e.rules.DailyLossLimit; r != nil && r.Enabled {
		run(RuleDailyLossLimit, e.dailyLossLimit)
	}
	if r := e.rules.OverallMaxLoss; r != nil && r.Enabled {
		run(RuleOverallMaxLoss, e.overallMaxLoss)
	}
	if r := e.rules.MaxPositionSize; r != nil && r.Enabled {
		run(RuleMaxPositionSize, e.maxPositionSize)
	}
	if r := e.rules.MAE; r != nil && r.Enabled {
		run(RuleMAE, e.maxAdverseExcursion)
	}
	if r := e.rules.Consistency; r != nil && r.Enabled {
		run(RuleConsistency, e.consistency)
	}
	if r := e.rules.TradingHours; r != nil && r.Enabled {
		run(RuleTradingHours, e.tradingHours)
	}
	if r := e.rules.MinimumTradingDays; r != nil && r.Enabled {
		run(RuleMinimumTradingDays, e.minimumTradingDays)
	}
	if r := e.rules.ProfitTarget; r != nil && r.Enabled {
		run(RuleProfitTarget, e.profitTarget)
	}

	return states
}

// overallRiskLevel is the single worst status across all produced states,
// ordered violated > critical > caution > safe. Zero enabled rules -> safe.
func overallRiskLevel(states map[string]model.RuleState) model.RuleStatus {
	level := model.StatusSafe
	for _, st := range states {
		if st.Status.WorseThan(level) {
			level = st.Status
		}
	}
	return level
}

// maxAllowedRisk 计算各风险指标的当前安全上限。
// max_loss_allowed 取所有亏损类 buffer 的最小值：最紧的约束说了算。
func maxAllowedRisk(states map[string]model.RuleState) map[string]decimal.Decimal {
	allowed := make(map[string]decimal.Decimal)

	var lossBuffers []decimal.Decimal
	for _, name := range []string{RuleTrailingDrawdown, RuleDailyLossLimit, RuleOverallMaxLoss} {
		if st, ok := states[name]; ok {
			lossBuffers = append(lossBuffers, st.RemainingBuffer)
		}
	}
	if len(lossBuffers) > 0 {
		min := lossBuffers[0]
		for _, b := range lossBuffers[1:] {
			if b.LessThan(min) {
				min = b
			}
		}
		allowed[MetricMaxLossAllowed] = min
	}

	if st, ok := states[RuleMaxPositionSize]; ok {
		var contracts int64
		if st.DistanceToViolation.Contracts != nil {
			contracts = *st.DistanceToViolation.Contracts
		}
		allowed[MetricMaxContractsAllowed] = decimal.NewFromInt(contracts)
	}

	return allowed
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func intPtr(i int64) *int64 { return &i }
