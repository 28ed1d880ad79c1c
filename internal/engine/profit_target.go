package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
)

// profitTarget 盈利目标规则。
//
// current_profit = realized + unrealized; the status only distinguishes the
// 70-90% band (CAUTION), everything else is SAFE — urgency is signalled
// through the numeric buffer, never through the status.
func (e *Engine) profitTarget(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.ProfitTarget

	currentProfit := snap.RealizedPnL.Add(snap.UnrealizedPnL)
	remaining := rule.TargetAmount.Sub(currentProfit)

	bufferPercent := d100
	if rule.TargetAmount.Sign() > 0 {
		bufferPercent = currentProfit.Div(rule.TargetAmount).Mul(d100)
	}

	status := model.StatusSafe
	if remaining.Sign() > 0 && bufferPercent.Cmp(pct90) < 0 && bufferPercent.Cmp(pct70) >= 0 {
		status = model.StatusCaution
	}

	var warnings []string
	if remaining.Sign() > 0 {
		warnings = append(warnings, fmt.Sprintf("Profit target: $%s remaining to reach $%s", remaining.StringFixed(2), rule.TargetAmount.String()))
	}

	recovery := ""
	if rule.Recoverable == model.Recoverable {
		recovery = fmt.Sprintf("Continue trading to reach $%s profit target", rule.TargetAmount.String())
	}

	return model.RuleState{
		RuleName:        RuleProfitTarget,
		CurrentValue:    currentProfit,
		Threshold:       rule.TargetAmount,
		RemainingBuffer: remaining,
		BufferPercent:   bufferPercent,
		Status:          status,
		DistanceToViolation: model.DistanceMetric{
			Dollars: decPtr(remaining),
			Percent: decPtr(bufferPercent),
		},
		Warnings:     warnings,
		Recoverable:  rule.Recoverable,
		Severity:     rule.Severity,
		RuleType:     rule.RuleType,
		RecoveryPath: recovery,
	}
}
