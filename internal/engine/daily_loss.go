package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// dailyLossLimit 单日亏损上限。
//
// daily_loss = max(0, -daily_pnl); the snapshot's daily PnL is realized-only
// by contract, so unrealized PnL is excluded by construction.
//
// Status by fraction of the limit consumed, all inclusive lower bounds:
// VIOLATED >= 100%, CRITICAL >= 95%, CAUTION >= 80%, else SAFE.
func (e *Engine) dailyLossLimit(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.DailyLossLimit

	dailyLoss := decimal.Zero
	if snap.DailyPnL.Sign() < 0 {
		dailyLoss = snap.DailyPnL.Neg()
	}

	buffer := rule.MaxLossAmount.Sub(dailyLoss)

	bufferPercent := decimal.Zero
	if rule.MaxLossAmount.Sign() > 0 {
		bufferPercent = buffer.Div(rule.MaxLossAmount).Mul(d100)
	}

	var status model.RuleStatus
	switch {
	case dailyLoss.Cmp(rule.MaxLossAmount) >= 0:
		status = model.StatusViolated
	case dailyLoss.Cmp(rule.MaxLossAmount.Mul(frac95)) >= 0:
		status = model.StatusCritical
	case dailyLoss.Cmp(rule.MaxLossAmount.Mul(frac80)) >= 0:
		status = model.StatusCaution
	default:
		status = model.StatusSafe
	}

	var warnings []string
	switch status {
	case model.StatusViolated:
		warnings = append(warnings, fmt.Sprintf("Daily loss limit VIOLATED: $%s loss exceeds limit of $%s", dailyLoss.StringFixed(2), rule.MaxLossAmount.StringFixed(2)))
	case model.StatusCritical:
		warnings = append(warnings, fmt.Sprintf("Daily loss limit critical: $%s remaining (95%%+ of limit used)", buffer.StringFixed(2)))
	case model.StatusCaution:
		warnings = append(warnings, fmt.Sprintf("Daily loss limit caution: $%s remaining (80%%+ of limit used)", buffer.StringFixed(2)))
	}

	// Recovery semantics differ by firm: Topstep-style day locks recover at
	// the reset time, hard-fail firms do not.
	recovery := ""
	switch rule.Recoverable {
	case model.Recoverable:
		recovery = fmt.Sprintf("Trading disabled until next session (resets at %s). Account does not fail unless repeated abuse.", rule.ResetTime)
	case model.NonRecoverable:
		recovery = recoveryNone
	}

	return model.RuleState{
		RuleName:        RuleDailyLossLimit,
		CurrentValue:    dailyLoss,
		Threshold:       rule.MaxLossAmount,
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
