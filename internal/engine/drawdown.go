package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
)

// trailingDrawdown 跟踪回撤规则。
//
// The drawdown trails the high-water mark: min_allowed = HWM - HWM*percent.
// Equity is used when the rule counts unrealized PnL (intraday style, e.g.
// Apex), balance otherwise (end-of-day style, e.g. Topstep).
//
// Status bands:
//   - VIOLATED: remaining buffer <= 0 (equality at the threshold IS a violation)
//   - CRITICAL: within 5% of the drawdown span above the threshold
//   - CAUTION:  within 20%
//   - SAFE:     otherwise
func (e *Engine) trailingDrawdown(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.TrailingDrawdown

	current := snap.Balance
	if rule.IncludeUnrealizedPnL {
		current = snap.Equity
	}

	span := snap.HighWaterMark.Mul(rule.MaxDrawdownPercent).Div(d100)
	minAllowed := snap.HighWaterMark.Sub(span)
	buffer := current.Sub(minAllowed)

	criticalAt := minAllowed.Add(span.Mul(frac05))
	cautionAt := minAllowed.Add(span.Mul(frac20))

	var status model.RuleStatus
	switch {
	case buffer.Sign() <= 0:
		status = model.StatusViolated
	case current.Cmp(criticalAt) <= 0:
		status = model.StatusCritical
	case current.Cmp(cautionAt) <= 0:
		status = model.StatusCaution
	default:
		status = model.StatusSafe
	}

	// Buffer as percentage of the drawdown span (100 when the span is zero,
	// i.e. a degenerate 0% drawdown config cannot be "close" to violation).
	bufferPercent := d100
	if span.Sign() > 0 {
		bufferPercent = buffer.Div(span).Mul(d100)
	}

	var warnings []string
	switch status {
	case model.StatusViolated:
		warnings = append(warnings, "Trailing drawdown VIOLATED: Account has breached drawdown limit")
	case model.StatusCritical:
		warnings = append(warnings, fmt.Sprintf("Trailing drawdown critical: $%s remaining (within 5%% of threshold)", buffer.StringFixed(2)))
	case model.StatusCaution:
		warnings = append(warnings, fmt.Sprintf("Trailing drawdown caution: $%s remaining (within 20%% of threshold)", buffer.StringFixed(2)))
	}

	recovery := ""
	if rule.Recoverable == model.NonRecoverable {
		recovery = recoveryNone
	}

	return model.RuleState{
		RuleName:        RuleTrailingDrawdown,
		CurrentValue:    current,
		Threshold:       minAllowed,
		RemainingBuffer: buffer,
		BufferPercent:   bufferPercent,
		Status:          status,
		DistanceToViolation: model.DistanceMetric{
			Dollars: decPtr(buffer),
			Percent: decPtr(bufferPercent),
		},
		Warnings:     warnings,
		Recoverable:  rule.Recoverable,
		Severity:     rule.Severity,
		RuleType:     rule.RuleType,
		RecoveryPath: recovery,
	}
}
