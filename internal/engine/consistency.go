package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// consistency 一致性规则：单日盈利不得超过总盈利的配置比例。
//
// Needs the daily PnL history; without it the rule degrades to a placeholder
// SAFE state carrying a warning instead of failing, so missing optional data
// can never produce a false violation. With no net profit the rule does not
// apply at all (it only constrains HOW profit was earned).
//
// The CAUTION/CRITICAL cut points (40%/45%) are fixed constants independent
// of the configured limit; only the VIOLATED bound follows the config. This
// mirrors the audited production behavior even though a limit below 45%
// makes the bands overlap oddly.
func (e *Engine) consistency(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.Consistency

	if len(snap.DailyPnLHistory) == 0 {
		return model.RuleState{
			RuleName:        RuleConsistency,
			CurrentValue:    decimal.Zero,
			Threshold:       rule.MaxSingleDayPercent,
			RemainingBuffer: rule.MaxSingleDayPercent,
			BufferPercent:   d100,
			Status:          model.StatusSafe,
			DistanceToViolation: model.DistanceMetric{
				Percent: decPtr(d100),
			},
			Warnings:    []string{"Daily PnL history required for consistency rule calculation"},
			Recoverable: rule.Recoverable,
			Severity:    rule.Severity,
			RuleType:    rule.RuleType,
		}
	}

	if snap.RealizedPnL.Sign() <= 0 {
		return model.RuleState{
			RuleName:        RuleConsistency,
			CurrentValue:    decimal.Zero,
			Threshold:       rule.MaxSingleDayPercent,
			RemainingBuffer: rule.MaxSingleDayPercent,
			BufferPercent:   d100,
			Status:          model.StatusSafe,
			DistanceToViolation: model.DistanceMetric{
				Percent: decPtr(d100),
			},
			Recoverable: rule.Recoverable,
			Severity:    rule.Severity,
			RuleType:    rule.RuleType,
		}
	}

	var maxSingleDay decimal.Decimal
	first := true
	for _, pnl := range snap.DailyPnLHistory {
		if first || pnl.GreaterThan(maxSingleDay) {
			maxSingleDay = pnl
			first = false
		}
	}

	largestDayPercent := maxSingleDay.Div(snap.RealizedPnL).Mul(d100)
	maxAllowedSingleDay := snap.RealizedPnL.Mul(rule.MaxSingleDayPercent.Div(d100))
	distance := maxAllowedSingleDay.Sub(maxSingleDay)

	// Strict violation predicate: exactly at the limit is SAFE, and the
	// escalation bands below only apply while there is still room under it.
	var status model.RuleStatus
	switch {
	case largestDayPercent.Cmp(rule.MaxSingleDayPercent) > 0:
		status = model.StatusViolated
	case largestDayPercent.Equal(rule.MaxSingleDayPercent):
		status = model.StatusSafe
	case largestDayPercent.Cmp(pct45) > 0:
		status = model.StatusCritical
	case largestDayPercent.Cmp(pct40) > 0:
		status = model.StatusCaution
	default:
		status = model.StatusSafe
	}

	bufferPercent := decimal.Zero
	if maxAllowedSingleDay.Sign() > 0 {
		bufferPercent = distance.Div(maxAllowedSingleDay).Mul(d100)
	}

	var warnings []string
	switch status {
	case model.StatusViolated:
		warnings = append(warnings, fmt.Sprintf("Consistency rule VIOLATED: %s%% of profit from single day (max %s%%)", largestDayPercent.StringFixed(1), rule.MaxSingleDayPercent.String()))
	case model.StatusCritical:
		warnings = append(warnings, fmt.Sprintf("Consistency rule critical: %s%% of profit from single day (max %s%%)", largestDayPercent.StringFixed(1), rule.MaxSingleDayPercent.String()))
	case model.StatusCaution:
		warnings = append(warnings, fmt.Sprintf("Consistency rule caution: %s%% of profit from single day", largestDayPercent.StringFixed(1)))
	}

	recovery := ""
	if rule.Recoverable == model.Recoverable {
		recovery = "Add more trading days or increase total profit to reduce single-day percentage"
	}

	return model.RuleState{
		RuleName:        RuleConsistency,
		CurrentValue:    largestDayPercent,
		Threshold:       rule.MaxSingleDayPercent,
		RemainingBuffer: distance,
		BufferPercent:   bufferPercent,
		Status:          status,
		DistanceToViolation: model.DistanceMetric{
			Dollars: decPtr(distance),
			Percent: decPtr(bufferPercent),
		},
		Warnings:     warnings,
		Recoverable:  rule.Recoverable,
		Severity:     rule.Severity,
		RuleType:     rule.RuleType,
		RecoveryPath: recovery,
	}
}
