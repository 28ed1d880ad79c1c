package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// overallMaxLoss 总亏损上限。
//
// total_loss is either starting_balance - equity (drawdown from the initial
// balance) or realized losses clamped at zero, depending on configuration.
// Bands: VIOLATED at buffer <= 0, CRITICAL at <= 10% remaining, CAUTION at
// <= 30% remaining.
func (e *Engine) overallMaxLoss(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.OverallMaxLoss

	var totalLoss decimal.Decimal
	if rule.FromStartingBalance {
		totalLoss = snap.StartingBalance.Sub(snap.Equity)
	} else if snap.RealizedPnL.Sign() < 0 {
		totalLoss = snap.RealizedPnL.Neg()
	} else {
		totalLoss = decimal.Zero
	}

	buffer := rule.MaxLossAmount.Sub(totalLoss)

	bufferPercent := decimal.Zero
	if rule.MaxLossAmount.Sign() > 0 {
		bufferPercent = buffer.Div(rule.MaxLossAmount).Mul(d100)
	}

	var status model.RuleStatus
	switch {
	case buffer.Sign() <= 0:
		status = model.StatusViolated
	case bufferPercent.Cmp(pct10) <= 0:
		status = model.StatusCritical
	case bufferPercent.Cmp(pct30) <= 0:
		status = model.StatusCaution
	default:
		status = model.StatusSafe
	}

	var warnings []string
	switch status {
	case model.StatusCritical:
		warnings = append(warnings, fmt.Sprintf("Overall max loss critical: $%s remaining", buffer.StringFixed(2)))
	case model.StatusCaution:
		warnings = append(warnings, fmt.Sprintf("Overall max loss caution: $%s remaining", buffer.StringFixed(2)))
	}

	recovery := ""
	if rule.Recoverable == model.NonRecoverable {
		recovery = recoveryNone
	}

	return model.RuleState{
		RuleName:        RuleOverallMaxLoss,
		CurrentValue:    totalLoss,
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
