package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// minimumTradingDays 最少交易天数规则。
//
// A day counts only when its realized PnL meets the configured minimum
// profit; smaller or losing days do not count even if trades occurred
// (min_profit_per_day = 0 makes losing days count, Topstep style).
//
// This rule never escalates past CAUTION: being behind schedule is a
// progress problem, not an imminent violation.
func (e *Engine) minimumTradingDays(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.MinimumTradingDays

	minDays := decimal.NewFromInt(int64(rule.MinDays))

	if len(snap.DailyPnLHistory) == 0 {
		return model.RuleState{
			RuleName:        RuleMinimumTradingDays,
			CurrentValue:    decimal.Zero,
			Threshold:       minDays,
			RemainingBuffer: minDays,
			BufferPercent:   decimal.Zero,
			Status:          model.StatusCaution,
			DistanceToViolation: model.DistanceMetric{
				Percent: decPtr(decimal.Zero),
			},
			Warnings:    []string{"Daily PnL history required for minimum trading days calculation"},
			Recoverable: rule.Recoverable,
			Severity:    rule.Severity,
			RuleType:    rule.RuleType,
		}
	}

	counted := 0
	for _, pnl := range snap.DailyPnLHistory {
		if pnl.Cmp(rule.MinProfitPerDay) >= 0 {
			counted++
		}
	}

	remaining := rule.MinDays - counted
	if remaining < 0 {
		remaining = 0
	}
	remainingDays := decimal.NewFromInt(int64(remaining))

	bufferPercent := d100
	if rule.MinDays > 0 {
		bufferPercent = remainingDays.Div(minDays).Mul(d100)
	}

	status := model.StatusCaution
	if remaining == 0 {
		status = model.StatusSafe
	}

	var warnings []string
	if remaining > 0 {
		warnings = append(warnings, fmt.Sprintf("Minimum trading days: %d more days required (min $%s profit per day)", remaining, rule.MinProfitPerDay.String()))
	} else {
		warnings = append(warnings, fmt.Sprintf("Minimum trading days requirement met: %d trading days", counted))
	}

	recovery := ""
	if rule.Recoverable == model.Recoverable {
		if remaining > 0 {
			recovery = fmt.Sprintf("Trade %d more days with at least $%s profit each day", remaining, rule.MinProfitPerDay.String())
		} else {
			recovery = "Requirement met - no action needed"
		}
	}

	return model.RuleState{
		RuleName:        RuleMinimumTradingDays,
		CurrentValue:    decimal.NewFromInt(int64(counted)),
		Threshold:       minDays,
		RemainingBuffer: remainingDays,
		BufferPercent:   bufferPercent,
		Status:          status,
		DistanceToViolation: model.DistanceMetric{
			Percent: decPtr(bufferPercent),
		},
		Warnings:     warnings,
		Recoverable:  rule.Recoverable,
		Severity:     rule.Severity,
		RuleType:     rule.RuleType,
		RecoveryPath: recovery,
	}
}
