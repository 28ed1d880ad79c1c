package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// maxAdverseExcursion MAE 规则。
//
// Evaluated against the PEAK unrealized loss each open position has reached,
// not the current loss: a trade that drew down past the limit and then
// recovered still fails the account. For that reason the rule is always
// treated as non-recoverable by firm convention.
func (e *Engine) maxAdverseExcursion(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.MAE

	// Most negative peak across all open positions (zero if none).
	maxMAE := decimal.Zero
	for _, pos := range snap.OpenPositions {
		if pos.PeakUnrealizedLoss.LessThan(maxMAE) {
			maxMAE = pos.PeakUnrealizedLoss
		}
	}
	worst := maxMAE.Abs()

	thresholdAmount := snap.StartingBalance.Mul(rule.MaxAdverseExcursionPercent).Div(d100)
	buffer := thresholdAmount.Sub(worst)

	bufferPercent := d100
	if thresholdAmount.Sign() > 0 {
		bufferPercent = buffer.Div(thresholdAmount).Mul(d100)
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
		warnings = append(warnings, fmt.Sprintf("MAE critical: $%s remaining before violation", buffer.StringFixed(2)))
	case model.StatusCaution:
		warnings = append(warnings, fmt.Sprintf("MAE caution: $%s remaining before violation", buffer.StringFixed(2)))
	}

	return model.RuleState{
		RuleName:        RuleMAE,
		CurrentValue:    worst,
		Threshold:       thresholdAmount,
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
		RecoveryPath: recoveryNone,
	}
}
